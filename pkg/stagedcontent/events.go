package stagedcontent

import (
	"context"
	"log/slog"
)

// NoopEventSink is an event sink that does nothing
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-op event sink
func NewNoopEventSink() *NoopEventSink {
	return &NoopEventSink{}
}

func (s *NoopEventSink) AssetStaged(ctx context.Context, file *FileSource) error { return nil }

func (s *NoopEventSink) AssetRemoved(ctx context.Context, key string) error { return nil }

func (s *NoopEventSink) SubmissionStarted(ctx context.Context, collection string) error { return nil }

func (s *NoopEventSink) SubmissionFinished(ctx context.Context, collection string, err error) error {
	return nil
}

// LogEventSink writes staging lifecycle events to a structured logger.
type LogEventSink struct {
	logger *slog.Logger
}

// NewLogEventSink creates an event sink backed by the given logger. A nil
// logger falls back to slog.Default.
func NewLogEventSink(logger *slog.Logger) *LogEventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEventSink{logger: logger}
}

func (s *LogEventSink) AssetStaged(ctx context.Context, file *FileSource) error {
	s.logger.Info("Asset staged", "file_name", file.Name, "size", file.Size)
	return nil
}

func (s *LogEventSink) AssetRemoved(ctx context.Context, key string) error {
	if key != "" {
		s.logger.Info("Existing asset removed", "key", key)
	} else {
		s.logger.Info("Pending asset removed")
	}
	return nil
}

func (s *LogEventSink) SubmissionStarted(ctx context.Context, collection string) error {
	s.logger.Info("Submission started", "collection", collection)
	return nil
}

func (s *LogEventSink) SubmissionFinished(ctx context.Context, collection string, err error) error {
	if err != nil {
		s.logger.Error("Submission failed", "collection", collection, "error", err)
	} else {
		s.logger.Info("Submission succeeded", "collection", collection)
	}
	return nil
}
