// Package discord adapts Discord direct messages to the chat transport
// contract. It owns the discordgo.Session lifecycle, turns gateway events
// into chat.Event values for a [Handler], and implements chat.Transport on
// top of the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speaksmart/internal/chat"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the bot token without the "Bot " prefix.
	Token string `yaml:"token"`

	// GuildID scopes slash command registration to one guild. Empty
	// registers global commands, which DMs require.
	GuildID string `yaml:"guild_id"`
}

// Handler consumes inbound events. *bot.Machine implements it.
type Handler interface {
	Handle(ctx context.Context, ev chat.Event) error
}

// restAPI is the part of *discordgo.Session the transport calls.
type restAPI interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditComplex(m *discordgo.MessageEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Bot owns the Discord gateway connection and implements chat.Transport.
type Bot struct {
	session *discordgo.Session
	api     restAPI
	guildID string
	http    *http.Client

	mu       sync.Mutex
	dms      map[int64]string // user id → DM channel id
	commands []*discordgo.ApplicationCommand

	// pending holds action interactions until they are answered.
	pending sync.Map // interaction id → *discordgo.Interaction

	closeOnce sync.Once
}

var _ chat.Transport = (*Bot)(nil)

// New creates a Bot. The gateway connection is opened by [Bot.Run].
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsDirectMessages

	b := newBot(session, cfg.GuildID)
	b.session = session
	return b, nil
}

func newBot(api restAPI, guildID string) *Bot {
	return &Bot{
		api:     api,
		guildID: guildID,
		http:    http.DefaultClient,
		dms:     make(map[int64]string),
	}
}

// Run connects to Discord, registers the slash commands and feeds events
// to h until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, h Handler) error {
	if b.session == nil {
		return errors.New("discord: bot has no gateway session")
	}
	b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		b.onMessage(ctx, h, m.Message)
	})
	b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) {
		b.onInteraction(ctx, h, i.Interaction)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}

	appID := b.session.State.User.ID
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, commandDefinitions())
	if err != nil {
		return fmt.Errorf("discord: register commands: %w", err)
	}
	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()
	slog.Info("discord commands registered", "count", len(registered))

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		if b.session == nil {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session.State != nil && b.session.State.User != nil {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}
		if err := b.session.Close(); err != nil {
			closeErr = fmt.Errorf("discord: close session: %w", err)
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}

func (b *Bot) onMessage(ctx context.Context, h Handler, m *discordgo.Message) {
	ev, ok := messageEvent(m)
	if !ok {
		return
	}
	b.rememberDM(ev.User.ID, m.ChannelID)
	b.dispatch(ctx, h, ev)
}

func (b *Bot) onInteraction(ctx context.Context, h Handler, i *discordgo.Interaction) {
	ev, ok := interactionEvent(i)
	if !ok {
		slog.Debug("discord: ignoring interaction", "type", i.Type)
		return
	}
	if i.GuildID == "" {
		b.rememberDM(ev.User.ID, i.ChannelID)
	}

	switch ev.Kind {
	case chat.KindCommand:
		b.respond(i, ephemeral("`"+ev.Text+"`"))
	case chat.KindMessage:
		b.respond(i, &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
	case chat.KindAction:
		b.pending.Store(i.ID, i)
		defer b.ackPending(i.ID)
	}
	b.dispatch(ctx, h, ev)
}

func (b *Bot) dispatch(ctx context.Context, h Handler, ev chat.Event) {
	if err := h.Handle(ctx, ev); err != nil {
		slog.Error("discord: event handling failed", "kind", ev.Kind.String(), "user_id", ev.User.ID, "err", err)
	}
}

// ackPending acknowledges an action interaction the handler left
// unanswered, so the client does not report a failure.
func (b *Bot) ackPending(id string) {
	v, ok := b.pending.LoadAndDelete(id)
	if !ok {
		return
	}
	b.respond(v.(*discordgo.Interaction), &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate})
}

func (b *Bot) rememberDM(userID int64, channelID string) {
	if channelID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dms[userID] = channelID
}
