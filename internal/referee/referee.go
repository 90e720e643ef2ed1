// Package referee runs the scoreboard pipeline for incoming chat messages and
// reports the verdict back to the channel.
package referee

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/toppings/giveandtake/internal/fuzzy"
	"github.com/toppings/giveandtake/internal/killlist"
	"github.com/toppings/giveandtake/internal/roster"
	"github.com/toppings/giveandtake/internal/scoreboard"
	"github.com/toppings/giveandtake/internal/types"
)

// DefaultScanDepth bounds how many earlier messages are searched for the
// previous round.
const DefaultScanDepth = 20

// Config holds the channel-level settings of a referee.
type Config struct {
	ChatChannel   string // where feedback and the kill list go
	ScanDepth     int    // 0 means DefaultScanDepth
	CommandPrefix string // prefix of admin commands, e.g. "!"
}

// Option customizes a Referee.
type Option func(*Referee)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(r *Referee) { r.log = log }
}

// WithSink adds a receiver for every outcome. Sink failures are logged and
// never change the verdict.
func WithSink(s OutcomeSink) Option {
	return func(r *Referee) { r.sinks = append(r.sinks, s) }
}

// Referee validates scoreboard messages against the round before them.
type Referee struct {
	platform Platform
	roster   *roster.Roster
	decoder  *scoreboard.Decoder
	cfg      Config
	log      *zap.Logger
	sinks    []OutcomeSink

	mu         sync.Mutex
	killListID string // pinned kill list message, text is re-read every time
}

// New returns a referee using p for all chat I/O and resolver for names.
func New(p Platform, r *roster.Roster, resolver fuzzy.NameResolver, cfg Config, opts ...Option) *Referee {
	if cfg.ScanDepth <= 0 {
		cfg.ScanDepth = DefaultScanDepth
	}
	ref := &Referee{
		platform: p,
		roster:   r,
		decoder:  scoreboard.NewDecoder(resolver),
		cfg:      cfg,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ref)
	}
	ref.log = ref.log.Named("referee")
	return ref
}

// Handle validates a new or edited message from the scoring channel and
// emits the verdict: reactions on the message, feedback in the chat channel
// and a kill list update on a death. The returned error is ErrNotScoreboard,
// ErrNoPreviousRound, a *PlatformError, or a decode failure of the previous
// round.
func (r *Referee) Handle(ctx context.Context, msg types.Message) (types.Outcome, error) {
	if msg.AuthorID == r.platform.SelfID() || !scoreboard.Matches(msg.Text) {
		return types.Outcome{}, ErrNotScoreboard
	}
	log := r.log.With(zap.String("message", msg.ID), zap.String("author", msg.AuthorID))

	prev, err := r.previousRound(ctx, msg)
	if err != nil {
		return types.Outcome{}, err
	}

	out, err := Check(r.decoder, r.roster.Current(), prev.Text, msg.Text)
	if err != nil {
		return types.Outcome{}, fmt.Errorf("check against %s: %w", prev.ID, err)
	}

	if out.Valid {
		fields := []zap.Field{zap.String("previous", prev.ID), zap.Int("items", out.ItemCount)}
		if out.Death != nil {
			fields = append(fields, zap.String("death", string(*out.Death)))
		}
		log.Info("round accepted", fields...)
	} else {
		log.Info("round rejected", zap.String("previous", prev.ID), zap.String("reason", out.Reason))
	}

	emitErr := r.emit(ctx, msg, out)
	r.publish(ctx, msg, out)
	return out, emitErr
}

// previousRound scans back from msg for the nearest scoreboard message.
func (r *Referee) previousRound(ctx context.Context, msg types.Message) (types.Message, error) {
	self := r.platform.SelfID()
	seen := 0
	for m, err := range r.platform.MessagesBefore(ctx, msg) {
		if err != nil {
			return types.Message{}, platformErr("history", err)
		}
		if m.AuthorID != self && scoreboard.Matches(m.Text) {
			return m, nil
		}
		seen++
		if seen >= r.cfg.ScanDepth {
			break
		}
	}
	return types.Message{}, ErrNoPreviousRound
}

func (r *Referee) emit(ctx context.Context, msg types.Message, out types.Outcome) error {
	if !out.Valid {
		if err := r.platform.AddReaction(ctx, msg, types.EmojiInvalid); err != nil {
			return platformErr("add reaction", err)
		}
		if err := r.platform.RemoveReaction(ctx, msg, types.EmojiValid); err != nil {
			return platformErr("remove reaction", err)
		}
		text := fmt.Sprintf("**Please double-check your post, %s!**\n%s", msg.Mention(), out.Reason)
		if _, err := r.platform.Send(ctx, r.cfg.ChatChannel, text); err != nil {
			return platformErr("send feedback", err)
		}
		return nil
	}

	if err := r.platform.AddReaction(ctx, msg, types.EmojiValid); err != nil {
		return platformErr("add reaction", err)
	}
	if err := r.platform.RemoveReaction(ctx, msg, types.EmojiInvalid); err != nil {
		return platformErr("remove reaction", err)
	}
	if out.Death == nil {
		return nil
	}
	if err := r.platform.AddReaction(ctx, msg, types.EmojiDeath); err != nil {
		return platformErr("add reaction", err)
	}
	return r.recordDeath(ctx, types.KilledEntry{Placement: out.ItemCount, Item: *out.Death})
}

// recordDeath prepends e to the kill list unless its placement is already
// the newest entry, which happens when a message is re-validated.
func (r *Referee) recordDeath(ctx context.Context, e types.KilledEntry) error {
	kl, err := r.EnsureKillList(ctx)
	if err != nil {
		return err
	}
	if killlist.HasPlacement(kl.Text, e.Placement) {
		r.log.Debug("death already recorded", zap.Int("placement", e.Placement), zap.String("item", string(e.Item)))
		return nil
	}
	if err := r.platform.Edit(ctx, kl, killlist.Prepend(kl.Text, e)); err != nil {
		return platformErr("edit kill list", err)
	}
	r.log.Info("death recorded", zap.Int("placement", e.Placement), zap.String("item", string(e.Item)))
	return nil
}

func (r *Referee) publish(ctx context.Context, msg types.Message, out types.Outcome) {
	for _, s := range r.sinks {
		if err := s.Publish(ctx, msg, out); err != nil {
			r.log.Warn("outcome sink failed", zap.String("message", msg.ID), zap.Error(err))
		}
	}
}

// EnsureKillList returns the pinned kill list in the chat channel with its
// current text. It prefers the message used last time, then any pinned kill
// list the bot authored, and otherwise posts and pins the placeholder.
func (r *Referee) EnsureKillList(ctx context.Context) (types.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pins, err := r.platform.PinnedMessages(ctx, r.cfg.ChatChannel)
	if err != nil {
		return types.Message{}, platformErr("list pins", err)
	}
	if r.killListID != "" {
		for _, p := range pins {
			if p.ID == r.killListID {
				return p, nil
			}
		}
	}
	self := r.platform.SelfID()
	for _, p := range pins {
		if p.AuthorID == self && killlist.IsKillList(p.Text) {
			r.killListID = p.ID
			return p, nil
		}
	}

	sent, err := r.platform.Send(ctx, r.cfg.ChatChannel, killlist.Placeholder)
	if err != nil {
		return types.Message{}, platformErr("send kill list", err)
	}
	if err := r.platform.Pin(ctx, sent); err != nil {
		return types.Message{}, platformErr("pin kill list", err)
	}
	r.killListID = sent.ID
	r.log.Info("kill list created", zap.String("message", sent.ID))
	return sent, nil
}

// HandleCommand runs admin commands posted in the chat channel. It reports
// whether msg was a command; commands from non-admins are ignored.
//
//	!setkilled 15.) Mushrooms
//	26.) Baby Corn
func (r *Referee) HandleCommand(ctx context.Context, msg types.Message) (bool, error) {
	name := r.cfg.CommandPrefix + "setkilled"
	rest, ok := strings.CutPrefix(msg.Text, name)
	if !ok || (rest != "" && !startsWithSpace(rest)) {
		return false, nil
	}

	admin, err := r.platform.IsAdmin(ctx, msg.AuthorID)
	if err != nil {
		return true, platformErr("user info", err)
	}
	if !admin {
		r.log.Info("ignoring setkilled from non-admin", zap.String("user", msg.AuthorID))
		return true, nil
	}

	body := strings.TrimSpace(rest)
	if body == "" {
		body = killlist.Placeholder
	}
	if _, err := killlist.Parse(body); err != nil {
		r.log.Warn("setkilled body does not parse as a kill list", zap.Error(err))
	}

	kl, err := r.EnsureKillList(ctx)
	if err != nil {
		return true, err
	}
	if err := r.platform.Edit(ctx, kl, body); err != nil {
		return true, platformErr("edit kill list", err)
	}
	r.log.Info("kill list replaced", zap.String("user", msg.AuthorID))
	return true, nil
}

func startsWithSpace(s string) bool {
	return s[0] == ' ' || s[0] == '\n' || s[0] == '\t' || s[0] == '\r'
}
