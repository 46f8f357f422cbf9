// Package email notifies passengers about order lifecycle changes. The
// delivery backend is a stub; the worker wires it behind the event
// consumer so a real SMTP or push sender drops in without touching the
// consume loop.
package email

import (
	"context"
	"log/slog"

	"railticket/internal/kafka"
)

type Sender struct {
	log *slog.Logger
}

func NewSender(log *slog.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(_ context.Context, event kafka.OrderEvent) error {
	s.log.Info("notify user about order",
		"type", event.Type,
		"order", event.OrderSerial,
		"user", event.UserID,
		"train", event.TrainID,
		"seats", len(event.Assignments),
	)
	return nil
}
