package alerts

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord posts alerts to a Discord channel over the REST API. No gateway
// connection is opened since alerts are outbound only.
type Discord struct {
	session *discordgo.Session
	channel string
}

// NewDiscord builds a Discord alerter from a bot token and channel ID.
func NewDiscord(token, channel string) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("alerts: create discord session: %w", err)
	}
	return &Discord{session: session, channel: channel}, nil
}

func (d *Discord) Alert(ctx context.Context, text string) error {
	_, err := d.session.ChannelMessageSend(d.channel, text,
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("alerts: discord post to %s: %w", d.channel, err)
	}
	return nil
}
