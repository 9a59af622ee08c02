// Package mock provides a recording double for the subset of the Discord REST
// API the transport uses.
package mock

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// SentMessage records one ChannelMessageSendComplex call.
type SentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
}

// Session records REST calls. Message ids are assigned sequentially from
// 1000; DM channel ids are "dm-<user id>".
type Session struct {
	mu sync.Mutex

	// SendErr, if non-nil, is returned by ChannelMessageSendComplex.
	SendErr error

	// ChannelErr, if non-nil, is returned by UserChannelCreate.
	ChannelErr error

	// Err is returned by InteractionRespond and ChannelMessageEditComplex
	// when non-nil.
	Err error

	Channels  []string
	Sent      []SentMessage
	Edits     []*discordgo.MessageEdit
	Responses []*discordgo.InteractionResponse

	nextID int
}

// UserChannelCreate returns the DM channel for recipientID.
func (m *Session) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ChannelErr != nil {
		return nil, m.ChannelErr
	}
	m.Channels = append(m.Channels, recipientID)
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

// ChannelMessageSendComplex records the message and returns it with a new id.
func (m *Session) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{ChannelID: channelID, Data: data})
	id := 1000 + m.nextID
	m.nextID++
	return &discordgo.Message{ID: strconv.Itoa(id), ChannelID: channelID, Content: data.Content}, nil
}

// ChannelMessageEditComplex records the edit.
func (m *Session) ChannelMessageEditComplex(e *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edits = append(m.Edits, e)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: e.ID, ChannelID: e.Channel}, nil
}

// InteractionRespond records the response and returns Err.
func (m *Session) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// LastSent returns the most recently sent message.
func (m *Session) LastSent() (SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Sent) == 0 {
		return SentMessage{}, fmt.Errorf("mock: nothing sent")
	}
	return m.Sent[len(m.Sent)-1], nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *Session) LastResponse() *discordgo.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}
