package services

import (
	"context"
	"fmt"

	"mapscout/analyzer"
	"mapscout/browser"
	"mapscout/config"
	"mapscout/models"
	"mapscout/scraper/maps"
	"mapscout/storage"
	"mapscout/utils"
)

// CollectionPipeline is one collection run end to end: acquire a browser
// session, walk the result feed, enrich each card, persist. Partial
// results are saved even when the run fails part-way.
type CollectionPipeline struct {
	logger   *utils.Logger
	browser  *browser.Manager
	cfg      config.CollectorConfig
	enricher *Enricher
	store    storage.Store
}

// NewCollectionPipeline wires the collection path.
func NewCollectionPipeline(logger *utils.Logger, mgr *browser.Manager, cfg config.CollectorConfig, enricher *Enricher, store storage.Store) *CollectionPipeline {
	return &CollectionPipeline{
		logger:   logger,
		browser:  mgr,
		cfg:      cfg,
		enricher: enricher,
		store:    store,
	}
}

// Run executes one collection attempt for the keyword. The returned count
// is listings actually persisted.
func (p *CollectionPipeline) Run(ctx context.Context, job *models.ScheduledJob, kw *models.Keyword) (int, models.Warnings, error) {
	session, err := p.browser.Acquire(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer session.Release()

	collector := maps.NewCollector(p.cfg, p.logger)
	raws, collectErr := collector.Collect(ctx, maps.NewSessionFeed(session), kw.Text)

	var warnings models.Warnings
	saved := 0
	for _, raw := range raws {
		listing, enrichWarnings := p.enricher.Enrich(ctx, kw.ID, raw)
		warnings = append(warnings, enrichWarnings...)

		if err := p.store.SaveListing(ctx, &listing); err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: save failed: %v", listing.Title, err))
			continue
		}
		saved++
	}

	if collectErr != nil {
		return saved, warnings, collectErr
	}
	return saved, warnings, nil
}

// AnalysisPipeline scores every website attached to a keyword's listings.
// A single site failing degrades to a warning; the run fails only when no
// listing could be loaded at all.
type AnalysisPipeline struct {
	logger   *utils.Logger
	analyzer *analyzer.Analyzer
	store    storage.Store
}

// NewAnalysisPipeline wires the analysis path.
func NewAnalysisPipeline(logger *utils.Logger, a *analyzer.Analyzer, store storage.Store) *AnalysisPipeline {
	return &AnalysisPipeline{logger: logger, analyzer: a, store: store}
}

func (p *AnalysisPipeline) Run(ctx context.Context, job *models.ScheduledJob, kw *models.Keyword) (int, models.Warnings, error) {
	listings, err := p.store.ListingsByKeyword(ctx, kw.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("load listings for keyword %d: %w", kw.ID, err)
	}

	var warnings models.Warnings
	analyzed := 0
	for _, listing := range listings {
		if listing.Website == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return analyzed, warnings, err
		}

		score, err := p.analyzer.Analyze(ctx, listing.ID, listing.Website)
		if err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: analysis failed: %v", listing.Website, err))
			continue
		}
		if err := p.store.SaveScore(ctx, &score); err != nil {
			warnings = warnings.Add(fmt.Sprintf("%s: save score failed: %v", listing.Website, err))
			continue
		}
		analyzed++
	}

	p.logger.Info("[analysis] Keyword %q: %d sites scored, %d warnings", kw.Text, analyzed, len(warnings))
	return analyzed, warnings, nil
}
