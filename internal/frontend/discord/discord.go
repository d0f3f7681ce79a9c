// ABOUTME: Discord front-end: receives guild messages, hands each one to
// ABOUTME: the gateway pipeline on its own goroutine, delivers chunked replies.

package discord

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handleTimeout bounds one message's full pipeline run, routing through
// delivery.
const handleTimeout = 2 * time.Minute

// Handler processes one inbound message and returns the reply text.
// Empty replies are not delivered.
type Handler func(ctx context.Context, userID, channelID, text string) string

// Bot is the Discord adapter. It owns the websocket session; all
// semantics live behind the Handler.
type Bot struct {
	session *discordgo.Session
	handler Handler
	prefix  string
	logger  *slog.Logger
}

// New builds the bot but does not connect. prefix, when set, restricts
// handling to messages starting with it or mentioning the bot.
func New(token string, handler Handler, prefix string, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		handler: handler,
		prefix:  prefix,
		logger:  logger.With("component", "discord"),
	}
	session.AddHandler(b.onMessage)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info("discord session ready", "username", r.User.Username)
	})
	return b, nil
}

// Start opens the websocket connection.
func (b *Bot) Start() error {
	return b.session.Open()
}

// Stop closes the websocket connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == s.State.User.ID {
		return
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}
	if b.prefix != "" && !strings.HasPrefix(text, b.prefix) && !b.mentioned(m) {
		return
	}
	text = strings.TrimSpace(strings.TrimPrefix(text, b.prefix))

	// One goroutine per inbound message; ordering within a reply is
	// preserved by Deliver, not here.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
		defer cancel()
		reply := b.handler(ctx, m.Author.ID, m.ChannelID, text)
		if reply == "" {
			return
		}
		if err := b.Deliver(m.ChannelID, reply); err != nil {
			b.logger.Error("delivery failed", "channel", m.ChannelID, "error", err)
		}
	}()
}

func (b *Bot) mentioned(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == b.session.State.User.ID {
			return true
		}
	}
	return false
}

// Deliver sends text to a channel, split into ordered chunks. Chunks go
// out sequentially; a send failure stops the remainder so a reply is
// never delivered with a hole in the middle.
func (b *Bot) Deliver(channelID, text string) error {
	for _, chunk := range Split(text, MessageLimit) {
		if _, err := b.session.ChannelMessageSend(channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}
