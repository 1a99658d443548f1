package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"mapscout/analyzer"
	"mapscout/browser"
	"mapscout/cache"
	"mapscout/config"
	"mapscout/metrics"
	"mapscout/models"
	"mapscout/notify"
	"mapscout/scheduler"
	"mapscout/services"
	"mapscout/storage"
	"mapscout/utils"
)

func main() {
	keywordsFlag := flag.String("keywords", "", "comma-separated keywords to collect")
	priorityFlag := flag.String("priority", "medium", "priority lane: high, medium or low")
	memoryFlag := flag.Bool("memory", false, "use the in-memory store instead of PostgreSQL")
	flag.Parse()

	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetDebug(cfg.Logging.Debug)

	logger.Info("=== MapScout starting ===")
	logger.Info("Config — max results: %d | sessions: %d | collection workers: %d | analysis workers: %d",
		cfg.Collector.MaxResults, cfg.Browser.MaxSessions,
		cfg.Scheduler.CollectionWorkers, cfg.Scheduler.AnalysisWorkers)

	var store storage.Store
	if *memoryFlag {
		store = storage.NewMemoryStore()
		logger.Warn("Running with the in-memory store; nothing will persist")
	} else {
		pg, err := storage.NewPostgresStore(cfg.Postgres.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			os.Exit(1)
		}
		store = pg
	}
	defer store.Close()

	reg := metrics.NewRegistry()
	notifier := notify.NewLogNotifier(logger)
	resultCache := cache.New(
		cache.WithShared(cache.NewMemoryShared()),
		cache.WithPromoteTTL(cfg.Cache.PromoteTTL),
	)

	sessions := browser.NewManager(cfg.Browser, logger, reg)
	hunter := services.NewEmailHunter(logger, &http.Client{Timeout: cfg.Analyzer.RequestTimeout}, services.NewDNSResolver())
	searcher := services.NewSessionSearchClient(logger, sessions)
	enricher := services.NewEnricher(logger, searcher, hunter)
	siteAnalyzer := analyzer.New(cfg.Analyzer, logger, resultCache, notifier, reg)

	sched := scheduler.New(cfg.Scheduler, logger, scheduler.Deps{
		Store:             store,
		Notifier:          notifier,
		Metrics:           reg,
		Cache:             resultCache,
		Collection:        services.NewCollectionPipeline(logger, sessions, cfg.Collector, enricher, store),
		Analysis:          services.NewAnalysisPipeline(logger, siteAnalyzer, store),
		CollectionTimeout: cfg.Collector.JobTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	keywordIDs := registerKeywords(ctx, logger, store, *keywordsFlag, parsePriority(*priorityFlag))
	if len(keywordIDs) == 0 {
		logger.Error("No keywords to work on. Pass -keywords \"coffee shops in Denver, ...\"")
		os.Exit(1)
	}

	jobIDs := sched.SubmitBatch(ctx, keywordIDs)
	logger.Info("Planned %d collection jobs across %d keywords", len(jobIDs), len(keywordIDs))

	sched.Start(ctx)

	<-ctx.Done()
	logger.Info("Shutting down — waiting for in-flight jobs")
	sched.Stop()

	snap := reg.Snapshot()
	for lane, counters := range snap.Lanes {
		logger.Info("Lane %s — started: %d | succeeded: %d | failed: %d",
			lane, counters.Started, counters.Succeeded, counters.Failed)
	}
	logger.Info("=== MapScout stopped ===")
}

// registerKeywords stores each new keyword and returns the ids to schedule.
func registerKeywords(ctx context.Context, logger *utils.Logger, store storage.Store, raw string, priority models.Priority) []int64 {
	var ids []int64
	for _, text := range strings.Split(raw, ",") {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		kw := &models.Keyword{Text: text, Status: models.StatusPending, Priority: priority}
		if err := store.SaveKeyword(ctx, kw); err != nil {
			logger.Error("Could not save keyword %q: %v", text, err)
			continue
		}
		ids = append(ids, kw.ID)
	}
	return ids
}

func parsePriority(raw string) models.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityMedium
	}
}
