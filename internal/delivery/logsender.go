package delivery

import (
	"context"
	"log"
)

// LogSender records sends without reaching any gateway. Used when the
// Evolution API is not configured, so local runs still exercise the full
// dispatch path.
type LogSender struct {
	logger *log.Logger
}

func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, number, text, label string) error {
	s.logger.Printf("[delivery] dry-run send label=%s number=%s chars=%d", label, number, len(text))
	return nil
}
