// Package notify defines the fire-and-forget notification hook the pipeline
// raises events through. Delivery (email, webhooks, reports) lives outside
// this repo; the logging implementation here is the default sink.
package notify

import "mapscout/utils"

// Event types raised by the pipeline.
const (
	EventCollectionComplete = "collection_complete"
	EventHighQualityScore   = "high_quality_score"
	EventRetriesExhausted   = "retries_exhausted"
	EventSystemAlert        = "system_alert"
)

// Payload carries event details. Fields are event-dependent; zero values
// mean "not applicable".
type Payload struct {
	KeywordID int64
	JobID     string
	Website   string
	Score     float64
	Results   int
	Message   string
}

// Notifier receives pipeline events. Implementations must not block the
// caller; errors are the implementation's problem.
type Notifier interface {
	Notify(eventType string, payload Payload)
}

// LogNotifier writes events to the application log.
type LogNotifier struct {
	logger *utils.Logger
}

// NewLogNotifier creates a Notifier backed by the given logger.
func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(eventType string, p Payload) {
	switch eventType {
	case EventHighQualityScore:
		n.logger.Info("[notify] %s — site %s scored %.0f", eventType, p.Website, p.Score)
	case EventCollectionComplete:
		n.logger.Info("[notify] %s — keyword %d finished with %d results", eventType, p.KeywordID, p.Results)
	case EventRetriesExhausted:
		n.logger.Error("[notify] %s — job %s: %s", eventType, p.JobID, p.Message)
	default:
		n.logger.Warn("[notify] %s — %s", eventType, p.Message)
	}
}
