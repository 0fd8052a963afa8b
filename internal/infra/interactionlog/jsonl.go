// Package interactionlog appends newline-delimited JSON interaction
// and feedback records to the configured logs directory.
package interactionlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanqian/ai-helloworld/internal/domain/interactionlog"
)

// JSONLLogger writes one JSON object per line to two append-only
// files. Each write is a single buffered syscall so concurrent writers
// never interleave partial lines.
type JSONLLogger struct {
	ragMu      sync.Mutex
	feedbackMu sync.Mutex
	ragPath    string
	feedbackPath string
	logger     *slog.Logger
}

// NewJSONLLogger ensures the logs directory exists and returns a
// Logger writing into it.
func NewJSONLLogger(logsDir string, logger *slog.Logger) (*JSONLLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, err
	}
	return &JSONLLogger{
		ragPath:      filepath.Join(logsDir, "rag_interactions.jsonl"),
		feedbackPath: filepath.Join(logsDir, "feedback_interactions.jsonl"),
		logger:       logger.With("component", "interactionlog.jsonl"),
	}, nil
}

func (l *JSONLLogger) LogInteraction(_ context.Context, entry interactionlog.RAGEntry) {
	l.ragMu.Lock()
	defer l.ragMu.Unlock()
	if err := appendLine(l.ragPath, entry); err != nil {
		l.logger.Error("failed to write interaction log entry", "error", err)
	}
}

func (l *JSONLLogger) LogFeedback(_ context.Context, entry interactionlog.FeedbackEntry) {
	l.feedbackMu.Lock()
	defer l.feedbackMu.Unlock()
	if err := appendLine(l.feedbackPath, entry); err != nil {
		l.logger.Error("failed to write feedback log entry", "error", err)
	}
}

func appendLine(path string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(payload)
	return err
}

var _ interactionlog.Logger = (*JSONLLogger)(nil)
