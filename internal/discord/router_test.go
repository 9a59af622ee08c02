package discord

import (
	"reflect"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/speaksmart/internal/chat"
)

func TestMessageEvent(t *testing.T) {
	t.Parallel()

	alice := &discordgo.User{ID: "11", Username: "alice"}

	tests := []struct {
		name   string
		msg    *discordgo.Message
		wantOK bool
		want   chat.Event
	}{
		{
			name:   "plain text",
			msg:    &discordgo.Message{ID: "500", ChannelID: "77", Author: alice, Content: "hello"},
			wantOK: true,
			want:   chat.Event{Kind: chat.KindMessage, User: chat.User{ID: 11, Username: "alice"}, ChatID: 77, MessageID: 500, Text: "hello"},
		},
		{
			name:   "text command",
			msg:    &discordgo.Message{ID: "501", ChannelID: "77", Author: alice, Content: "/Close #5"},
			wantOK: true,
			want: chat.Event{
				Kind: chat.KindCommand, User: chat.User{ID: 11, Username: "alice"}, ChatID: 77, MessageID: 501,
				Text: "/Close #5", Command: "close", Args: []string{"#5"},
			},
		},
		{
			name: "reply",
			msg: &discordgo.Message{
				ID: "502", ChannelID: "77", Author: alice, Content: "answer",
				MessageReference: &discordgo.MessageReference{MessageID: "1000"},
			},
			wantOK: true,
			want:   chat.Event{Kind: chat.KindMessage, User: chat.User{ID: 11, Username: "alice"}, ChatID: 77, MessageID: 502, Text: "answer", ReplyTo: 1000},
		},
		{
			name: "voice by content type",
			msg: &discordgo.Message{
				ID: "503", ChannelID: "77", Author: alice,
				Attachments: []*discordgo.MessageAttachment{
					{URL: "https://cdn/x.png", Filename: "x.png", ContentType: "image/png"},
					{URL: "https://cdn/voice-message.ogg", Filename: "voice-message.ogg", ContentType: "audio/ogg"},
				},
			},
			wantOK: true,
			want: chat.Event{
				Kind: chat.KindMessage, User: chat.User{ID: 11, Username: "alice"}, ChatID: 77, MessageID: 503,
				Voice: &chat.Attachment{Ref: "https://cdn/voice-message.ogg", Filename: "voice-message.ogg", ContentType: "audio/ogg"},
			},
		},
		{
			name: "voice by extension",
			msg: &discordgo.Message{
				ID: "504", ChannelID: "77", Author: alice,
				Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/a.mp3", Filename: "a.mp3"}},
			},
			wantOK: true,
			want: chat.Event{
				Kind: chat.KindMessage, User: chat.User{ID: 11, Username: "alice"}, ChatID: 77, MessageID: 504,
				Voice: &chat.Attachment{Ref: "https://cdn/a.mp3", Filename: "a.mp3"},
			},
		},
		{
			name: "bot author",
			msg:  &discordgo.Message{Author: &discordgo.User{ID: "1", Bot: true}, Content: "hi"},
		},
		{
			name: "guild message",
			msg:  &discordgo.Message{Author: alice, GuildID: "g1", Content: "hi"},
		},
		{
			name: "no author",
			msg:  &discordgo.Message{Content: "hi"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := messageEvent(tc.msg)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("event = %+v\nwant    %+v", got, tc.want)
			}
		})
	}
}

func TestInteractionEvent(t *testing.T) {
	t.Parallel()

	op := &discordgo.User{ID: "900", Username: "op"}

	tests := []struct {
		name   string
		in     *discordgo.Interaction
		wantOK bool
		want   chat.Event
	}{
		{
			name: "slash command with option",
			in: &discordgo.Interaction{
				ID: "i1", Type: discordgo.InteractionApplicationCommand, ChannelID: "77", User: op,
				Data: discordgo.ApplicationCommandInteractionData{
					Name: "close",
					Options: []*discordgo.ApplicationCommandInteractionDataOption{
						{Name: "ticket_id", Type: discordgo.ApplicationCommandOptionString, Value: "#5"},
					},
				},
			},
			wantOK: true,
			want: chat.Event{
				Kind: chat.KindCommand, User: chat.User{ID: 900, Username: "op"}, ChatID: 77,
				Text: "/close #5", Command: "close", Args: []string{"#5"},
			},
		},
		{
			name: "slash command without options",
			in: &discordgo.Interaction{
				ID: "i2", Type: discordgo.InteractionApplicationCommand, ChannelID: "77", User: op,
				Data: discordgo.ApplicationCommandInteractionData{Name: "practice"},
			},
			wantOK: true,
			want:   chat.Event{Kind: chat.KindCommand, User: chat.User{ID: 900, Username: "op"}, ChatID: 77, Text: "/practice", Command: "practice"},
		},
		{
			name: "keyboard button",
			in: &discordgo.Interaction{
				ID: "i3", Type: discordgo.InteractionMessageComponent, ChannelID: "77", User: op,
				Data: discordgo.MessageComponentInteractionData{CustomID: "kbd:Next"},
			},
			wantOK: true,
			want:   chat.Event{Kind: chat.KindMessage, User: chat.User{ID: 900, Username: "op"}, ChatID: 77, Text: "Next"},
		},
		{
			name: "action button from guild member",
			in: &discordgo.Interaction{
				ID: "i4", Type: discordgo.InteractionMessageComponent, ChannelID: "77",
				Member:  &discordgo.Member{User: op},
				Message: &discordgo.Message{ID: "1000"},
				Data:    discordgo.MessageComponentInteractionData{CustomID: "close_ticket:5"},
			},
			wantOK: true,
			want: chat.Event{
				Kind: chat.KindAction, User: chat.User{ID: 900, Username: "op"}, ChatID: 77,
				ActionID: "i4", ActionData: "close_ticket:5", ActionMessageID: 1000,
			},
		},
		{
			name: "no user",
			in:   &discordgo.Interaction{Type: discordgo.InteractionApplicationCommand},
		},
		{
			name: "ping",
			in:   &discordgo.Interaction{Type: discordgo.InteractionPing, User: op},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := interactionEvent(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tc.want) {
				t.Errorf("event = %+v\nwant    %+v", got, tc.want)
			}
		})
	}
}

func TestComponents(t *testing.T) {
	t.Parallel()

	if got := components(nil, nil); got != nil {
		t.Errorf("components(nil, nil) = %v, want nil", got)
	}
	if got := components(chat.RemoveKeyboard, nil); got != nil {
		t.Errorf("components(remove) = %v, want nil", got)
	}

	rows := components(chat.Keyboard{{"Next", "Repeat"}, {"Exit"}}, []chat.Button{{Label: "Close ticket", Data: "close_ticket:1"}})
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	first := rows[0].(discordgo.ActionsRow)
	if len(first.Components) != 2 || first.Components[0].(discordgo.Button).CustomID != "kbd:Next" {
		t.Errorf("first row = %+v", first)
	}
	last := rows[2].(discordgo.ActionsRow)
	btn := last.Components[0].(discordgo.Button)
	if btn.CustomID != "close_ticket:1" || btn.Label != "Close ticket" {
		t.Errorf("action button = %+v", btn)
	}
}

func TestCommandDefinitions(t *testing.T) {
	t.Parallel()

	names := map[string]bool{}
	for _, c := range commandDefinitions() {
		names[c.Name] = true
	}
	for _, want := range []string{"start", "help", "cancel", "practice", "support", "close"} {
		if !names[want] {
			t.Errorf("command %q not registered", want)
		}
	}
}
