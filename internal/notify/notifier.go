package notify

import "context"

// Notifier delivers trade and lifecycle messages to an operator channel.
type Notifier interface {
	Send(ctx context.Context, title, message string) error
}

// Noop drops every message. Used when no channel is configured.
type Noop struct{}

func (Noop) Send(context.Context, string, string) error { return nil }
