package services

import (
	"context"
	"log/slog"
)

// PMSender delivers reddit private messages. The original site messaged
// voters through its bot account; that transport is not wired up here, so
// the default sender only records the attempt.
type PMSender interface {
	SendPM(ctx context.Context, nickname, subject, body string) error
}

type noopPMSender struct {
	logger *slog.Logger
}

func NewNoopPMSender(logger *slog.Logger) PMSender {
	return &noopPMSender{logger: logger}
}

func (s *noopPMSender) SendPM(ctx context.Context, nickname, subject, body string) error {
	s.logger.Info("pm delivery skipped, no transport configured",
		slog.String("nickname", nickname), slog.String("subject", subject))
	return nil
}
