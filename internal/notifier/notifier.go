// Package notifier escalates operational conditions to the humans running
// the relay: rate-limit outcomes, daemon outages, monitor failures.
package notifier

import (
	"context"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/LeventeLantos/signal-relay/internal/signald"
)

type signalSender interface {
	Send(ctx context.Context, recipient string, msg signald.Request) error
}

type Config struct {
	// SupportChannel is the channel number maintainer alerts are sent from.
	// Empty disables Signal delivery of alerts.
	SupportChannel  string
	SysadminNumbers []string
	SentryEnabled   bool
}

type Notifier struct {
	signal  signalSender
	webhook *WebhookClient
	cfg     Config
	log     *slog.Logger
}

// New wires the delivery paths. webhook may be nil.
func New(signal signalSender, webhook *WebhookClient, cfg Config, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		signal:  signal,
		webhook: webhook,
		cfg:     cfg,
		log:     log.With("component", "notifier"),
	}
}

// NotifyMaintainers fans an alert out on every configured path. Delivery is
// best effort: an unreachable webhook or a failed Signal send is logged and
// must never take down the path that raised the alert.
func (n *Notifier) NotifyMaintainers(ctx context.Context, message string) {
	if n.cfg.SupportChannel != "" {
		msg := signald.MessageOf(n.cfg.SupportChannel, message)
		for _, number := range n.cfg.SysadminNumbers {
			if err := n.signal.Send(ctx, number, msg); err != nil {
				n.log.Error("maintainer alert via signal failed", "recipient", number, "err", err)
			}
		}
	}

	if n.webhook != nil {
		if err := n.webhook.Notify(ctx, message); err != nil {
			n.log.Error("maintainer alert via webhook failed", "err", err)
		}
	}

	if n.cfg.SentryEnabled {
		sentry.CaptureMessage(message)
	}
}
