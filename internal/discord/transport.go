package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speaksmart/internal/chat"
)

// Send delivers msg to the user's DM channel. A reply keyboard and inline
// actions are rendered as button rows on the message itself.
func (b *Bot) Send(ctx context.Context, userID int64, msg chat.Outgoing) (int64, error) {
	channelID, err := b.dmChannel(ctx, userID)
	if err != nil {
		return 0, err
	}

	data := &discordgo.MessageSend{
		Content:    msg.Text,
		Components: components(msg.Keyboard, msg.Actions),
	}
	if msg.AudioPath != "" {
		f, err := os.Open(msg.AudioPath)
		if err != nil {
			return 0, fmt.Errorf("discord: open audio %s: %w", msg.AudioPath, err)
		}
		defer f.Close()
		data.Files = []*discordgo.File{{
			Name:        filepath.Base(msg.AudioPath),
			ContentType: "audio/ogg",
			Reader:      f,
		}}
	}

	sent, err := b.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("discord: send to %d: %w", userID, mapError(err))
	}
	return parseID(sent.ID), nil
}

// Fetch downloads an attachment from the Discord CDN.
func (b *Bot) Fetch(ctx context.Context, att chat.Attachment) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.Ref, nil)
	if err != nil {
		return nil, fmt.Errorf("discord: create download request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discord: download attachment: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("discord: download attachment: status %s", resp.Status)
	}
	return resp.Body, nil
}

// AnswerAction responds to a pending button press. Text is shown only to
// the presser; alert is not distinguished because Discord has no alert
// dialog.
func (b *Bot) AnswerAction(ctx context.Context, actionID, text string, _ bool) error {
	v, ok := b.pending.LoadAndDelete(actionID)
	if !ok {
		return fmt.Errorf("discord: no pending interaction %q", actionID)
	}
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if text != "" {
		resp = ephemeral(text)
	}
	if err := b.api.InteractionRespond(v.(*discordgo.Interaction), resp, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: answer interaction: %w", mapError(err))
	}
	return nil
}

// ClearControls removes all buttons from a message in the user's DM channel.
func (b *Bot) ClearControls(ctx context.Context, userID, messageID int64) error {
	channelID, err := b.dmChannel(ctx, userID)
	if err != nil {
		return err
	}
	empty := []discordgo.MessageComponent{}
	edit := &discordgo.MessageEdit{
		ID:         strconv.FormatInt(messageID, 10),
		Channel:    channelID,
		Components: &empty,
	}
	if _, err := b.api.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: clear controls: %w", mapError(err))
	}
	return nil
}

// dmChannel returns the DM channel with userID, opening it if needed.
func (b *Bot) dmChannel(ctx context.Context, userID int64) (string, error) {
	b.mu.Lock()
	id, ok := b.dms[userID]
	b.mu.Unlock()
	if ok {
		return id, nil
	}

	ch, err := b.api.UserChannelCreate(strconv.FormatInt(userID, 10), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("discord: open DM with %d: %w", userID, mapError(err))
	}
	b.rememberDM(userID, ch.ID)
	return ch.ID, nil
}

// mapError classifies REST failures into the chat delivery errors.
func mapError(err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Response == nil {
		return err
	}
	switch rest.Response.StatusCode {
	case http.StatusForbidden:
		return fmt.Errorf("%w: %w", chat.ErrForbidden, err)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %w", chat.ErrBadRequest, err)
	}
	return err
}
