package types

// Message is a chat message as seen by the referee.
// ID is platform specific (the Slack message timestamp).
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
	Text      string `json:"text"`
}

// Mention returns the platform mention markup for the author.
func (m Message) Mention() string {
	return "<@" + m.AuthorID + ">"
}

// Emoji identifies the reactions the referee places on messages.
type Emoji string

const (
	EmojiValid   Emoji = "white_check_mark"
	EmojiInvalid Emoji = "no_entry_sign"
	EmojiDeath   Emoji = "skull"
)
