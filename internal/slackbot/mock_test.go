package slackbot

import (
	"context"
	"fmt"
	"sync"

	"github.com/slack-go/slack"
)

// ---------- Mock Slack API ----------

// postedMessage captures a PostMessageContext call for assertion.
type postedMessage struct {
	ChannelID string
	Text      string
}

// updatedMessage captures an UpdateMessageContext call.
type updatedMessage struct {
	ChannelID string
	Timestamp string
	Text      string
}

// reaction captures an Add/RemoveReactionContext call.
type reaction struct {
	Name      string
	Channel   string
	Timestamp string
}

type mockSlackAPI struct {
	mu sync.Mutex

	// Captured calls
	PostedMessages   []postedMessage
	UpdatedMessages  []updatedMessage
	Pinned           []slack.ItemRef
	AddedReactions   []reaction
	RemovedReactions []reaction
	HistoryCalls     []slack.GetConversationHistoryParameters

	// Canned responses
	historyPages []*slack.GetConversationHistoryResponse // served in order
	pins         []slack.Item
	users        map[string]*slack.User

	// Auto-increment message timestamps
	nextTS int

	// Configurable errors
	postMessageErr error
	historyErr     error
	addReactionErr error
	removeErr      error
}

func newMockSlackAPI() *mockSlackAPI {
	return &mockSlackAPI{users: make(map[string]*slack.User)}
}

func (m *mockSlackAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "UBOTTEST", Team: "pizza"}, nil
}

func (m *mockSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postMessageErr != nil {
		return "", "", m.postMessageErr
	}
	m.nextTS++
	ts := fmt.Sprintf("1234567890.%06d", m.nextTS)
	_, vals, _ := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	m.PostedMessages = append(m.PostedMessages, postedMessage{ChannelID: channelID, Text: vals.Get("text")})
	return channelID, ts, nil
}

func (m *mockSlackAPI) UpdateMessageContext(_ context.Context, channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, vals, _ := slack.UnsafeApplyMsgOptions("", channelID, "", options...)
	m.UpdatedMessages = append(m.UpdatedMessages, updatedMessage{
		ChannelID: channelID,
		Timestamp: timestamp,
		Text:      vals.Get("text"),
	})
	return channelID, timestamp, vals.Get("text"), nil
}

func (m *mockSlackAPI) GetConversationHistoryContext(_ context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.HistoryCalls = append(m.HistoryCalls, *params)
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	if len(m.historyPages) == 0 {
		return &slack.GetConversationHistoryResponse{}, nil
	}
	page := m.historyPages[0]
	m.historyPages = m.historyPages[1:]
	return page, nil
}

func (m *mockSlackAPI) ListPinsContext(context.Context, string) ([]slack.Item, *slack.Paging, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pins, &slack.Paging{}, nil
}

func (m *mockSlackAPI) AddPinContext(_ context.Context, _ string, item slack.ItemRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Pinned = append(m.Pinned, item)
	return nil
}

func (m *mockSlackAPI) AddReactionContext(_ context.Context, name string, item slack.ItemRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addReactionErr != nil {
		return m.addReactionErr
	}
	m.AddedReactions = append(m.AddedReactions, reaction{Name: name, Channel: item.Channel, Timestamp: item.Timestamp})
	return nil
}

func (m *mockSlackAPI) RemoveReactionContext(_ context.Context, name string, item slack.ItemRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.RemovedReactions = append(m.RemovedReactions, reaction{Name: name, Channel: item.Channel, Timestamp: item.Timestamp})
	return nil
}

func (m *mockSlackAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user]
	if !ok {
		return nil, fmt.Errorf("user_not_found")
	}
	return u, nil
}

func historyMsg(user, ts, text string) slack.Message {
	return slack.Message{Msg: slack.Msg{User: user, Timestamp: ts, Text: text}}
}
