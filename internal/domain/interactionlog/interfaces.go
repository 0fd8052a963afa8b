package interactionlog

import "context"

// Logger appends interaction and feedback records. Failures must never
// propagate to the caller: logging is best-effort telemetry.
type Logger interface {
	LogInteraction(ctx context.Context, entry RAGEntry)
	LogFeedback(ctx context.Context, entry FeedbackEntry)
}
