package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// ephemeral builds a response only the presser sees.
func ephemeral(content string) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}
}

// respond sends an interaction response, logging failures.
func (b *Bot) respond(i *discordgo.Interaction, resp *discordgo.InteractionResponse) {
	if err := b.api.InteractionRespond(i, resp); err != nil {
		slog.Warn("discord: failed to respond to interaction", "type", resp.Type, "err", err)
	}
}
