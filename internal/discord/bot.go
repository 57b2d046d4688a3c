// Package discord answers read-only operator queries about the ledger in the
// notification channel.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/NgigiN/ledger/internal/apperr"
	"github.com/NgigiN/ledger/internal/storage"
)

const historyLimit = 10

const usage = "Usage:\n!summary - accounts and totals\n!balance <email> - one account\n!history <email> - last transactions"

type Bot struct {
	session   *discordgo.Session
	db        *storage.Database
	channelID string
	log       *slog.Logger
}

func NewBot(botToken, channelID string, db *storage.Database, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		db:        db,
		channelID: channelID,
		log:       log,
	}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	return nil
}

func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return //bot's messages
	}
	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	resp, ok := b.reply(ctx, m.Content)
	if !ok {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, resp); err != nil {
		b.log.Warn("discord reply failed", "error", err)
	}
}

// reply answers a channel message. ok is false for messages that are not
// commands.
func (b *Bot) reply(ctx context.Context, content string) (resp string, ok bool) {
	args := strings.Fields(content)
	if len(args) == 0 || !strings.HasPrefix(args[0], "!") {
		return "", false
	}

	switch strings.ToLower(args[0]) {
	case "!summary":
		return b.summary(ctx), true
	case "!balance":
		if len(args) != 2 {
			return "Usage: !balance <email>", true
		}
		return b.balance(ctx, args[1]), true
	case "!history":
		if len(args) != 2 {
			return "Usage: !history <email>", true
		}
		return b.history(ctx, args[1]), true
	default:
		return usage, true
	}
}

func (b *Bot) summary(ctx context.Context) string {
	accounts, err := b.db.ListAccounts(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to get summary: %v", apperr.MessageOf(err))
	}
	count, err := b.db.CountTransactions(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to get summary: %v", apperr.MessageOf(err))
	}

	var total int64
	for _, a := range accounts {
		total += a.Balance
	}

	var sb strings.Builder
	sb.WriteString("📊 **Ledger Summary**\n\n")
	fmt.Fprintf(&sb, "**Accounts**: %d\n", len(accounts))
	fmt.Fprintf(&sb, "**Transactions**: %d\n", count)
	fmt.Fprintf(&sb, "\n**Total balance**: %d", total)
	return sb.String()
}

func (b *Bot) balance(ctx context.Context, email string) string {
	a, err := b.db.FindAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Sprintf("No account found for %s", email)
	}
	if err != nil {
		return fmt.Sprintf("Failed to get account: %v", apperr.MessageOf(err))
	}
	return fmt.Sprintf("💰 **%s** (%s): %d [%s]", a.Name, a.Email, a.Balance, a.Status)
}

func (b *Bot) history(ctx context.Context, email string) string {
	a, err := b.db.FindAccountByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Sprintf("No account found for %s", email)
	}
	if err != nil {
		return fmt.Sprintf("Failed to get account: %v", apperr.MessageOf(err))
	}
	txs, err := b.db.ListByAccount(ctx, a.ID, "")
	if err != nil {
		return fmt.Sprintf("Failed to get transactions: %v", apperr.MessageOf(err))
	}
	if len(txs) == 0 {
		return fmt.Sprintf("No transactions found for %s", a.Email)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 **Transactions for %s**\n\n", a.Email)

	limit := min(historyLimit, len(txs))
	for _, tx := range txs[:limit] {
		fmt.Fprintf(&sb, "• **%s %d**\n  %s - %s\n\n",
			tx.Type, tx.Amount,
			tx.Timestamp.UTC().Format("Jan 2, 2006 3:04 PM"),
			tx.Description)
	}
	if len(txs) > limit {
		fmt.Fprintf(&sb, "... and %d more transactions\n\n", len(txs)-limit)
	}
	fmt.Fprintf(&sb, "**Balance**: %d (%d transactions)", a.Balance, len(txs))
	return sb.String()
}
