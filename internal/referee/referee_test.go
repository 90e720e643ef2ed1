package referee

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/killlist"
	"github.com/toppings/giveandtake/internal/roster"
	"github.com/toppings/giveandtake/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	scoring = "C-SCORING"
	chat    = "C-CHAT"
	botID   = "U-BOT"
)

// fakePlatform is an in-memory chat service. history is oldest first.
type fakePlatform struct {
	mu sync.Mutex

	history []types.Message
	pins    []types.Message
	admins  map[string]bool

	sent      []types.Message
	edits     []string
	reactions map[string]map[types.Emoji]bool
	pulled    int
	nextID    int

	fail map[string]error // op name -> error
}

func newFakePlatform(history ...types.Message) *fakePlatform {
	return &fakePlatform{
		history:   history,
		admins:    map[string]bool{},
		reactions: map[string]map[types.Emoji]bool{},
		fail:      map[string]error{},
	}
}

func (f *fakePlatform) MessagesBefore(_ context.Context, msg types.Message) iter.Seq2[types.Message, error] {
	return func(yield func(types.Message, error) bool) {
		if err := f.fail["history"]; err != nil {
			yield(types.Message{}, err)
			return
		}
		start := len(f.history) - 1
		for i, m := range f.history {
			if m.ID == msg.ID {
				start = i - 1
				break
			}
		}
		for i := start; i >= 0; i-- {
			f.pulled++
			if !yield(f.history[i], nil) {
				return
			}
		}
	}
}

func (f *fakePlatform) PinnedMessages(_ context.Context, channelID string) ([]types.Message, error) {
	if err := f.fail["pins"]; err != nil {
		return nil, err
	}
	var out []types.Message
	for _, p := range f.pins {
		if p.ChannelID == channelID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlatform) Send(_ context.Context, channelID, text string) (types.Message, error) {
	if err := f.fail["send"]; err != nil {
		return types.Message{}, err
	}
	f.nextID++
	m := types.Message{ID: fmt.Sprintf("S%d", f.nextID), ChannelID: channelID, AuthorID: botID, Text: text}
	f.sent = append(f.sent, m)
	return m, nil
}

func (f *fakePlatform) Edit(_ context.Context, msg types.Message, text string) error {
	if err := f.fail["edit"]; err != nil {
		return err
	}
	f.edits = append(f.edits, text)
	for i := range f.pins {
		if f.pins[i].ID == msg.ID {
			f.pins[i].Text = text
		}
	}
	return nil
}

func (f *fakePlatform) Pin(_ context.Context, msg types.Message) error {
	f.pins = append(f.pins, msg)
	return nil
}

func (f *fakePlatform) AddReaction(_ context.Context, msg types.Message, emoji types.Emoji) error {
	if err := f.fail["react"]; err != nil {
		return err
	}
	if f.reactions[msg.ID] == nil {
		f.reactions[msg.ID] = map[types.Emoji]bool{}
	}
	f.reactions[msg.ID][emoji] = true
	return nil
}

func (f *fakePlatform) RemoveReaction(_ context.Context, msg types.Message, emoji types.Emoji) error {
	delete(f.reactions[msg.ID], emoji)
	return nil
}

func (f *fakePlatform) IsAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

func (f *fakePlatform) SelfID() string { return botID }

func (f *fakePlatform) killList() string {
	for _, p := range f.pins {
		if p.ChannelID == chat && p.AuthorID == botID {
			return p.Text
		}
	}
	return ""
}

func board(counts map[types.Item]int, signs map[types.Item]string, omitted ...types.Item) string {
	skip := map[types.Item]bool{}
	for _, it := range omitted {
		skip[it] = true
	}
	var lines []string
	for _, it := range roster.DefaultItems {
		if skip[it] {
			continue
		}
		n, ok := counts[it]
		if !ok {
			n = roster.DefaultAllocation
		}
		line := fmt.Sprintf("%s - %d", it, n)
		if s := signs[it]; s != "" {
			line += " " + s
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func post(id, author, text string) types.Message {
	return types.Message{ID: id, ChannelID: scoring, AuthorID: author, Text: text}
}

func newReferee(p Platform, opts ...Option) *Referee {
	return New(p, roster.Default(), fuzzy.NewLevenshtein(0), Config{ChatChannel: chat, CommandPrefix: "!"}, opts...)
}

func TestHandleValidRound(t *testing.T) {
	prev := post("1", "U1", board(map[types.Item]int{"Mushrooms": 3, "Bacon": 7}, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Mushrooms": 2, "Bacon": 7, "Ham": 6},
		map[types.Item]string{"Mushrooms": "-", "Ham": "+"},
	))
	p := newFakePlatform(prev, cur)
	p.reactions["2"] = map[types.Emoji]bool{types.EmojiInvalid: true}

	out, err := newReferee(p).Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Nil(t, out.Death)
	assert.Equal(t, map[types.Emoji]bool{types.EmojiValid: true}, p.reactions["2"])
	assert.Empty(t, p.sent, "no feedback and no kill list for a plain valid round")
}

func TestHandleInvalidRoundSendsFeedback(t *testing.T) {
	prev := post("1", "U1", board(nil, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Egg": 6, "Ham": 6, "Tofu": 3},
		map[types.Item]string{"Egg": "+", "Ham": "+", "Tofu": "-"},
	))
	p := newFakePlatform(prev, cur)
	p.reactions["2"] = map[types.Emoji]bool{types.EmojiValid: true}

	out, err := newReferee(p).Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, "Two plus signs found.", out.Reason)
	assert.Equal(t, map[types.Emoji]bool{types.EmojiInvalid: true}, p.reactions["2"])

	require.Len(t, p.sent, 1)
	assert.Equal(t, chat, p.sent[0].ChannelID)
	assert.Equal(t, "**Please double-check your post, <@U2>!**\nTwo plus signs found.", p.sent[0].Text)
}

func TestHandleUnknownItem(t *testing.T) {
	prev := post("1", "U1", board(nil, nil))
	cur := post("2", "U2", "Egg - 6 +\nXyzzy - 4 -")
	p := newFakePlatform(prev, cur)

	out, err := newReferee(p).Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.False(t, out.Valid)
	assert.Equal(t, `Could not match "Xyzzy" to any item.`, out.Reason)
	require.Len(t, p.sent, 1)
	assert.Contains(t, p.sent[0].Text, out.Reason)
}

func TestHandleDeathUpdatesKillListOnce(t *testing.T) {
	prev := post("1", "U1", board(map[types.Item]int{"Shrimp": 1, "Tofu": 9}, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Shrimp": 0, "Tofu": 9, "Egg": 6},
		map[types.Item]string{"Shrimp": "-", "Egg": "+"},
	))
	p := newFakePlatform(prev, cur)
	ref := newReferee(p)

	out, err := ref.Handle(context.Background(), cur)
	require.NoError(t, err)
	require.True(t, out.Valid, out.Reason)
	require.NotNil(t, out.Death)
	assert.Equal(t, types.Item("Shrimp"), *out.Death)
	assert.True(t, p.reactions["2"][types.EmojiDeath])

	// Placeholder was posted and pinned, then replaced by the first entry.
	require.Len(t, p.sent, 1)
	assert.Equal(t, killlist.Placeholder, p.sent[0].Text)
	assert.Equal(t, "28.) Shrimp", p.killList())

	// An edit re-runs the pipeline; the death must not be recorded twice.
	again, err := ref.Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, "28.) Shrimp", p.killList())
	assert.Len(t, p.edits, 1)
	assert.Len(t, p.sent, 1)
}

func TestHandleDeathPrependsToExistingList(t *testing.T) {
	prev := post("1", "U1", board(map[types.Item]int{"Tofu": 1, "Egg": 14}, nil, "Shrimp"))
	cur := post("2", "U2", board(
		map[types.Item]int{"Tofu": 0, "Egg": 14, "Ham": 6},
		map[types.Item]string{"Tofu": "-", "Ham": "+"},
		"Shrimp",
	))
	p := newFakePlatform(prev, cur)
	p.pins = []types.Message{
		{ID: "P0", ChannelID: chat, AuthorID: "U-ADMIN", Text: "welcome, read the rules"},
		{ID: "P1", ChannelID: chat, AuthorID: botID, Text: "28.) Shrimp"},
	}

	out, err := newReferee(p).Handle(context.Background(), cur)
	require.NoError(t, err)
	require.True(t, out.Valid, out.Reason)
	assert.Equal(t, 27, out.ItemCount)
	assert.Equal(t, "27.) Tofu\n28.) Shrimp", p.killList())
	assert.Empty(t, p.sent)
}

func TestHandleEditedMessageComparesWithRoundBeforeIt(t *testing.T) {
	prev := post("1", "U1", board(map[types.Item]int{"Mushrooms": 3, "Bacon": 7}, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Mushrooms": 2, "Bacon": 7, "Ham": 6},
		map[types.Item]string{"Mushrooms": "-", "Ham": "+"},
	))
	later := post("3", "U3", "nice one")
	p := newFakePlatform(prev, cur, later)

	out, err := newReferee(p).Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.True(t, out.Valid, out.Reason)
}

func TestHandleSkips(t *testing.T) {
	t.Run("chatter", func(t *testing.T) {
		p := newFakePlatform()
		_, err := newReferee(p).Handle(context.Background(), post("1", "U1", "good luck all"))
		assert.ErrorIs(t, err, ErrNotScoreboard)
	})

	t.Run("own message", func(t *testing.T) {
		p := newFakePlatform()
		_, err := newReferee(p).Handle(context.Background(), post("1", botID, board(nil, nil)))
		assert.ErrorIs(t, err, ErrNotScoreboard)
	})

	t.Run("previous round beyond scan depth", func(t *testing.T) {
		history := []types.Message{post("old", "U1", board(nil, nil))}
		for i := range 25 {
			history = append(history, post(fmt.Sprintf("c%d", i), "U2", "chatter"))
		}
		cur := post("cur", "U3", board(nil, map[types.Item]string{"Egg": "+", "Ham": "-"}))
		history = append(history, cur)
		p := newFakePlatform(history...)

		_, err := newReferee(p).Handle(context.Background(), cur)
		assert.ErrorIs(t, err, ErrNoPreviousRound)
		assert.Equal(t, DefaultScanDepth, p.pulled)
		assert.Empty(t, p.reactions)
	})

	t.Run("bot posts are not rounds", func(t *testing.T) {
		prev := post("1", "U1", board(nil, nil))
		bot := post("2", botID, "Egg - 1")
		cur := post("3", "U2", board(
			map[types.Item]int{"Egg": 6, "Ham": 4},
			map[types.Item]string{"Egg": "+", "Ham": "-"},
		))
		p := newFakePlatform(prev, bot, cur)

		out, err := newReferee(p).Handle(context.Background(), cur)
		require.NoError(t, err)
		assert.True(t, out.Valid, out.Reason)
	})
}

func TestHandlePreviousRoundUndecodable(t *testing.T) {
	prev := post("1", "U1", "Xyzzy - 5")
	cur := post("2", "U2", board(nil, map[types.Item]string{"Egg": "+", "Ham": "-"}))
	p := newFakePlatform(prev, cur)

	_, err := newReferee(p).Handle(context.Background(), cur)
	require.Error(t, err)
	var nm *fuzzy.NoMatchError
	assert.True(t, errors.As(err, &nm))
	assert.Empty(t, p.reactions)
	assert.Empty(t, p.sent)
}

func TestHandlePlatformErrors(t *testing.T) {
	prev := post("1", "U1", board(nil, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Egg": 6, "Ham": 4},
		map[types.Item]string{"Egg": "+", "Ham": "-"},
	))
	boom := errors.New("rate limited")

	tests := []struct {
		op     string
		wantOp string
	}{
		{op: "history", wantOp: "history"},
		{op: "react", wantOp: "add reaction"},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			p := newFakePlatform(prev, cur)
			p.fail[tt.op] = boom

			_, err := newReferee(p).Handle(context.Background(), cur)
			var pe *PlatformError
			require.True(t, errors.As(err, &pe), "got %v", err)
			assert.Equal(t, tt.wantOp, pe.Op)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestHandlePublishesToSinks(t *testing.T) {
	prev := post("1", "U1", board(nil, nil))
	cur := post("2", "U2", board(
		map[types.Item]int{"Egg": 6, "Ham": 4},
		map[types.Item]string{"Egg": "+", "Ham": "-"},
	))
	p := newFakePlatform(prev, cur)

	var got []types.Outcome
	record := OutcomeSinkFunc(func(_ context.Context, _ types.Message, out types.Outcome) error {
		got = append(got, out)
		return nil
	})
	broken := OutcomeSinkFunc(func(context.Context, types.Message, types.Outcome) error {
		return errors.New("nats down")
	})
	core, logs := observer.New(zap.WarnLevel)

	out, err := newReferee(p, WithSink(broken), WithSink(record), WithLogger(zap.New(core))).Handle(context.Background(), cur)
	require.NoError(t, err)
	assert.True(t, out.Valid)
	assert.Equal(t, []types.Outcome{out}, got)
	assert.Equal(t, 1, logs.FilterMessage("outcome sink failed").Len())
}

func TestEnsureKillList(t *testing.T) {
	t.Run("reuses pinned list", func(t *testing.T) {
		p := newFakePlatform()
		p.pins = []types.Message{
			{ID: "P0", ChannelID: chat, AuthorID: "U-ADMIN", Text: "28.) Shrimp"},
			{ID: "P1", ChannelID: chat, AuthorID: botID, Text: killlist.Placeholder},
		}
		kl, err := newReferee(p).EnsureKillList(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "P1", kl.ID)
		assert.Empty(t, p.sent)
	})

	t.Run("creates and pins placeholder", func(t *testing.T) {
		p := newFakePlatform()
		ref := newReferee(p)
		kl, err := ref.EnsureKillList(context.Background())
		require.NoError(t, err)
		assert.Equal(t, killlist.Placeholder, kl.Text)
		require.Len(t, p.pins, 1)
		assert.Equal(t, kl.ID, p.pins[0].ID)

		again, err := ref.EnsureKillList(context.Background())
		require.NoError(t, err)
		assert.Equal(t, kl.ID, again.ID)
		assert.Len(t, p.sent, 1)
	})

	t.Run("pins failure", func(t *testing.T) {
		p := newFakePlatform()
		p.fail["pins"] = errors.New("forbidden")
		_, err := newReferee(p).EnsureKillList(context.Background())
		var pe *PlatformError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, "list pins", pe.Op)
	})
}

func TestHandleCommandSetKilled(t *testing.T) {
	tests := []struct {
		name        string
		author      string
		text        string
		wantHandled bool
		wantList    string
	}{
		{
			name:        "admin replaces list",
			author:      "U-ADMIN",
			text:        "!setkilled 15.) Mushrooms\n26.) Baby Corn\n27.) Ground Beef\n28.) Shrimp",
			wantHandled: true,
			wantList:    "15.) Mushrooms\n26.) Baby Corn\n27.) Ground Beef\n28.) Shrimp",
		},
		{
			name:        "empty body resets to placeholder",
			author:      "U-ADMIN",
			text:        "!setkilled   ",
			wantHandled: true,
			wantList:    killlist.Placeholder,
		},
		{
			name:        "non-admin is ignored",
			author:      "U1",
			text:        "!setkilled 1.) Pepperoni",
			wantHandled: true,
			wantList:    "28.) Shrimp",
		},
		{name: "other command", author: "U-ADMIN", text: "!setkilledx 1.) Egg", wantList: "28.) Shrimp"},
		{name: "chatter", author: "U-ADMIN", text: "who set killed?", wantList: "28.) Shrimp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			p.admins["U-ADMIN"] = true
			p.pins = []types.Message{{ID: "P1", ChannelID: chat, AuthorID: botID, Text: "28.) Shrimp"}}

			msg := types.Message{ID: "M1", ChannelID: chat, AuthorID: tt.author, Text: tt.text}
			handled, err := newReferee(p).HandleCommand(context.Background(), msg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHandled, handled)
			assert.Equal(t, tt.wantList, p.killList())
		})
	}
}
