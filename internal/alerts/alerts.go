// Package alerts posts internal operational notifications (new submissions,
// fit issues, workflow errors) to the clinic's team chat. Outbound only; the
// team never replies through this channel.
package alerts

import (
	"context"
	"fmt"

	"github.com/jilsnshah/alignflow/internal/config"
)

// Alerter posts one message to the configured ops channel.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// Nop discards alerts, used when no platform is configured.
type Nop struct{}

func (Nop) Alert(ctx context.Context, text string) error { return nil }

// New builds the alerter selected by configuration.
func New(cfg config.AlertsConfig) (Alerter, error) {
	switch cfg.Platform {
	case "":
		return Nop{}, nil
	case "slack":
		return NewSlack(cfg.Token, cfg.Channel), nil
	case "discord":
		return NewDiscord(cfg.Token, cfg.Channel)
	default:
		return nil, fmt.Errorf("alerts: unknown platform %q", cfg.Platform)
	}
}
