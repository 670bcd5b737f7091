package alerts

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// Slack posts alerts to a Slack channel via the Web API.
type Slack struct {
	client  *slackapi.Client
	channel string
}

// NewSlack builds a Slack alerter from a bot token and channel ID.
func NewSlack(token, channel string) *Slack {
	return &Slack{
		client:  slackapi.New(token),
		channel: channel,
	}
}

func (s *Slack) Alert(ctx context.Context, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("alerts: slack post to %s: %w", s.channel, err)
	}
	return nil
}
