package slackbot

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/slack-go/slack"

	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/types"
)

// DefaultHistoryPageSize matches the default scan depth so a typical lookup
// costs a single conversations.history call.
const DefaultHistoryPageSize = 20

// Platform implements referee.Platform on top of the Slack Web API.
// Message IDs are Slack timestamps.
type Platform struct {
	api      SlackAPI
	pageSize int
	selfID   atomic.Value // string, set once auth.test succeeds
}

var _ referee.Platform = (*Platform)(nil)

// NewPlatform returns a Slack platform adapter.
func NewPlatform(api SlackAPI) *Platform {
	p := &Platform{api: api, pageSize: DefaultHistoryPageSize}
	p.selfID.Store("")
	return p
}

// SetSelfID records the bot's own user ID.
func (p *Platform) SetSelfID(id string) {
	p.selfID.Store(id)
}

// SelfID returns the bot's own user ID, empty before the bot has authenticated.
func (p *Platform) SelfID() string {
	return p.selfID.Load().(string)
}

// MessagesBefore pages through conversations.history starting just before msg.
func (p *Platform) MessagesBefore(ctx context.Context, msg types.Message) iter.Seq2[types.Message, error] {
	return func(yield func(types.Message, error) bool) {
		params := &slack.GetConversationHistoryParameters{
			ChannelID: msg.ChannelID,
			Latest:    msg.ID,
			Inclusive: false,
			Limit:     p.pageSize,
		}
		for {
			resp, err := p.api.GetConversationHistoryContext(ctx, params)
			if err != nil {
				yield(types.Message{}, err)
				return
			}
			for _, m := range resp.Messages {
				if !yield(fromSlack(msg.ChannelID, m.Msg), nil) {
					return
				}
			}
			if !resp.HasMore || resp.ResponseMetaData.NextCursor == "" {
				return
			}
			params.Cursor = resp.ResponseMetaData.NextCursor
		}
	}
}

func (p *Platform) PinnedMessages(ctx context.Context, channelID string) ([]types.Message, error) {
	items, _, err := p.api.ListPinsContext(ctx, channelID)
	if err != nil {
		return nil, err
	}
	out := make([]types.Message, 0, len(items))
	for _, it := range items {
		if it.Message == nil {
			continue
		}
		out = append(out, fromSlack(channelID, it.Message.Msg))
	}
	return out, nil
}

func (p *Platform) Send(ctx context.Context, channelID, text string) (types.Message, error) {
	_, ts, err := p.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return types.Message{}, err
	}
	return types.Message{ID: ts, ChannelID: channelID, AuthorID: p.SelfID(), Text: text}, nil
}

func (p *Platform) Edit(ctx context.Context, msg types.Message, text string) error {
	_, _, _, err := p.api.UpdateMessageContext(ctx, msg.ChannelID, msg.ID, slack.MsgOptionText(text, false))
	return err
}

func (p *Platform) Pin(ctx context.Context, msg types.Message) error {
	err := p.api.AddPinContext(ctx, msg.ChannelID, slack.NewRefToMessage(msg.ChannelID, msg.ID))
	if isSlackError(err, "already_pinned") {
		return nil
	}
	return err
}

func (p *Platform) AddReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error {
	err := p.api.AddReactionContext(ctx, string(emoji), slack.NewRefToMessage(msg.ChannelID, msg.ID))
	if isSlackError(err, "already_reacted") {
		return nil
	}
	return err
}

// RemoveReaction removes the bot's reaction. Slack only lets a token remove
// its own reactions, so other users' reactions are never touched.
func (p *Platform) RemoveReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error {
	err := p.api.RemoveReactionContext(ctx, string(emoji), slack.NewRefToMessage(msg.ChannelID, msg.ID))
	if isSlackError(err, "no_reaction") {
		return nil
	}
	return err
}

// IsAdmin treats workspace admins and owners as game admins.
func (p *Platform) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := p.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin || u.IsOwner, nil
}

// isSlackError reports whether err is the Slack API error code.
func isSlackError(err error, code string) bool {
	return err != nil && err.Error() == code
}

// Slack escapes these three characters in message text.
var unescaper = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

func fromSlack(channelID string, m slack.Msg) types.Message {
	author := m.User
	if author == "" {
		author = m.BotID
	}
	if m.Channel != "" {
		channelID = m.Channel
	}
	return types.Message{
		ID:        m.Timestamp,
		ChannelID: channelID,
		AuthorID:  author,
		Text:      unescaper.Replace(m.Text),
	}
}
