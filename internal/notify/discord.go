package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord posts events to a single channel through the Discord REST API.
// The gateway websocket is never opened; sending messages does not need it.
type Discord struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscord creates a channel notifier authenticated as a bot.
func NewDiscord(botToken, channelID string) (*Discord, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is not set")
	}
	if channelID == "" {
		return nil, fmt.Errorf("discord channel ID is not set")
	}
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &Discord{session: session, channelID: channelID}, nil
}

func (d *Discord) Notify(ctx context.Context, ev Event) error {
	if _, err := d.session.ChannelMessageSend(d.channelID, Format(ev), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

// Close releases the session.
func (d *Discord) Close() error {
	return d.session.Close()
}
