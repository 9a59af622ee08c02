package discord

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speaksmart/internal/chat"
)

// keyboardPrefix marks buttons rendered from a reply keyboard. Pressing one
// comes back as a plain message carrying the label.
const keyboardPrefix = "kbd:"

// commandDefinitions lists the slash commands registered with Discord.
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{Name: "start", Description: "Reset and show the available commands"},
		{Name: "help", Description: "Show help"},
		{Name: "cancel", Description: "Leave the current mode"},
		{Name: "practice", Description: "Voice practice"},
		{Name: "support", Description: "Ask a question (FAQ or operator)"},
		{
			Name:        "close",
			Description: "Close a ticket (operator only)",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "ticket_id",
				Description: "Ticket number, e.g. 12 or #12",
				Required:    true,
			}},
		},
	}
}

// messageEvent converts a direct message. Messages from bots and from guild
// channels are dropped.
func messageEvent(m *discordgo.Message) (chat.Event, bool) {
	if m == nil || m.Author == nil || m.Author.Bot || m.GuildID != "" {
		return chat.Event{}, false
	}
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return chat.Event{}, false
	}

	ev := chat.Event{
		Kind:      chat.KindMessage,
		User:      chat.User{ID: userID, Username: m.Author.Username},
		ChatID:    parseID(m.ChannelID),
		MessageID: parseID(m.ID),
		Text:      m.Content,
		Voice:     voiceAttachment(m.Attachments),
	}
	if m.MessageReference != nil {
		ev.ReplyTo = parseID(m.MessageReference.MessageID)
	}
	if name, args, ok := parseCommand(m.Content); ok {
		ev.Kind = chat.KindCommand
		ev.Command = name
		ev.Args = args
	}
	return ev, true
}

// interactionEvent converts a slash command or button press.
func interactionEvent(i *discordgo.Interaction) (chat.Event, bool) {
	u := i.User
	if u == nil && i.Member != nil {
		u = i.Member.User
	}
	if u == nil {
		return chat.Event{}, false
	}
	userID, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return chat.Event{}, false
	}
	ev := chat.Event{
		User:   chat.User{ID: userID, Username: u.Username},
		ChatID: parseID(i.ChannelID),
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		ev.Kind = chat.KindCommand
		ev.Command = strings.ToLower(data.Name)
		for _, opt := range data.Options {
			if opt.Type == discordgo.ApplicationCommandOptionString {
				ev.Args = append(ev.Args, strings.Fields(opt.StringValue())...)
			}
		}
		ev.Text = strings.TrimSpace("/" + ev.Command + " " + strings.Join(ev.Args, " "))
		return ev, true

	case discordgo.InteractionMessageComponent:
		customID := i.MessageComponentData().CustomID
		if label, ok := strings.CutPrefix(customID, keyboardPrefix); ok {
			ev.Kind = chat.KindMessage
			ev.Text = label
			return ev, true
		}
		ev.Kind = chat.KindAction
		ev.ActionID = i.ID
		ev.ActionData = customID
		if i.Message != nil {
			ev.ActionMessageID = parseID(i.Message.ID)
		}
		return ev, true
	}
	return chat.Event{}, false
}

// parseCommand splits "/name arg1 arg2" into its parts.
func parseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") || len(fields[0]) < 2 {
		return "", nil, false
	}
	return strings.ToLower(fields[0][1:]), fields[1:], true
}

// voiceAttachment returns the first audio attachment.
func voiceAttachment(atts []*discordgo.MessageAttachment) *chat.Attachment {
	for _, a := range atts {
		if a == nil || !isAudio(a) {
			continue
		}
		return &chat.Attachment{Ref: a.URL, Filename: a.Filename, ContentType: a.ContentType}
	}
	return nil
}

func isAudio(a *discordgo.MessageAttachment) bool {
	if strings.HasPrefix(a.ContentType, "audio/") {
		return true
	}
	switch strings.ToLower(a.Filename[strings.LastIndex(a.Filename, ".")+1:]) {
	case "ogg", "oga", "opus", "mp3", "wav", "m4a":
		return true
	}
	return false
}

// parseID converts a snowflake; invalid or empty ids become 0.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// components renders a reply keyboard and inline actions as button rows.
func components(kb chat.Keyboard, actions []chat.Button) []discordgo.MessageComponent {
	var rows []discordgo.MessageComponent
	for _, row := range kb {
		var btns []discordgo.MessageComponent
		for _, label := range row {
			btns = append(btns, discordgo.Button{
				Label:    label,
				Style:    discordgo.SecondaryButton,
				CustomID: keyboardPrefix + label,
			})
		}
		if len(btns) > 0 {
			rows = append(rows, discordgo.ActionsRow{Components: btns})
		}
	}
	if len(actions) > 0 {
		var btns []discordgo.MessageComponent
		for _, a := range actions {
			btns = append(btns, discordgo.Button{
				Label:    a.Label,
				Style:    discordgo.DangerButton,
				CustomID: a.Data,
			})
		}
		rows = append(rows, discordgo.ActionsRow{Components: btns})
	}
	return rows
}
