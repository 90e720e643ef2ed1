// Package slackbot runs the give-and-take referee as a Slack bot.
// It uses the slack-go/slack library with Socket Mode for WebSocket-based communication.
package slackbot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/types"
)

// Handler is the referee side of the bot.
type Handler interface {
	Handle(ctx context.Context, msg types.Message) (types.Outcome, error)
	HandleCommand(ctx context.Context, msg types.Message) (bool, error)
	EnsureKillList(ctx context.Context) (types.Message, error)
}

// Bot listens to the scoring and chat channels and forwards messages to a Handler.
type Bot struct {
	client     SlackAPI
	socketMode *socketmode.Client
	platform   *Platform
	handler    Handler
	log        *zap.Logger

	scoringChannel string
	chatChannel    string

	connected atomic.Bool
}

// BotConfig holds configuration for the Slack bot.
type BotConfig struct {
	BotToken       string // xoxb-... Slack bot token
	AppToken       string // xapp-... Slack app-level token (for Socket Mode)
	ScoringChannel string // channel where scoreboards are posted
	ChatChannel    string // companion channel for feedback and the kill list
	Debug          bool
}

// NewBot creates a new Slack bot. Attach a handler with SetHandler before Run.
func NewBot(cfg BotConfig, log *zap.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("app token is required for Socket Mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("app token must start with xapp-")
	}
	if cfg.ScoringChannel == "" || cfg.ChatChannel == "" {
		return nil, fmt.Errorf("scoring and chat channels are required")
	}

	client := slack.New(
		cfg.BotToken,
		slack.OptionDebug(cfg.Debug),
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	socketClient := socketmode.New(
		client,
		socketmode.OptionDebug(cfg.Debug),
	)

	return &Bot{
		client:         client,
		socketMode:     socketClient,
		platform:       NewPlatform(client),
		log:            log.Named("slackbot"),
		scoringChannel: cfg.ScoringChannel,
		chatChannel:    cfg.ChatChannel,
	}, nil
}

// newBotForTest creates a Bot with injectable mock dependencies for testing.
// No Slack connection or token validation is performed.
func newBotForTest(api SlackAPI, h Handler, scoringChannel, chatChannel string) *Bot {
	return &Bot{
		client:         api,
		platform:       NewPlatform(api),
		handler:        h,
		log:            zap.NewNop(),
		scoringChannel: scoringChannel,
		chatChannel:    chatChannel,
	}
}

// Platform returns the Slack adapter used to build the referee.
func (b *Bot) Platform() *Platform {
	return b.platform
}

// SetHandler attaches the referee.
func (b *Bot) SetHandler(h Handler) {
	b.handler = h
}

// Run starts the bot event loop. Blocks until context is canceled.
func (b *Bot) Run(ctx context.Context) error {
	if b.handler == nil {
		return fmt.Errorf("slackbot: no handler attached")
	}
	if err := b.authenticate(ctx); err != nil {
		return err
	}

	if kl, err := b.handler.EnsureKillList(ctx); err != nil {
		b.log.Warn("failed to locate kill list", zap.Error(err))
	} else {
		b.log.Info("kill list ready", zap.String("message", kl.ID))
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-b.socketMode.Events:
				if !ok {
					return
				}
				b.handleEvent(ctx, evt)
			}
		}
	}()

	return b.socketMode.RunContext(ctx)
}

func (b *Bot) authenticate(ctx context.Context) error {
	resp, err := b.client.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	b.platform.SetSelfID(resp.UserID)
	b.log.Info("authenticated", zap.String("user", resp.UserID), zap.String("team", resp.Team))
	return nil
}

// IsConnected reports whether Socket Mode is currently connected.
func (b *Bot) IsConnected() bool {
	return b.connected.Load()
}

// ---------- Event dispatch ----------

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.log.Info("connecting to Socket Mode")

	case socketmode.EventTypeConnected:
		b.log.Info("connected to Socket Mode")
		b.connected.Store(true)

	case socketmode.EventTypeConnectionError:
		b.log.Warn("connection error", zap.Any("data", evt.Data))
		b.connected.Store(false)

	case socketmode.EventTypeDisconnect:
		b.connected.Store(false)

	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socketMode.Ack(*evt.Request)
		b.handleEventsAPI(ctx, eventsAPIEvent)
	}
}

func (b *Bot) handleEventsAPI(ctx context.Context, event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}

	ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}

	switch ev.Channel {
	case b.scoringChannel:
		msg, ok := scoringMessage(ev)
		if !ok {
			return
		}
		b.handleRound(ctx, msg)
	case b.chatChannel:
		if ev.SubType != "" || ev.ThreadTimeStamp != "" {
			return
		}
		b.handleCommand(ctx, fromSlack(ev.Channel, eventMsg(ev)))
	}
}

// scoringMessage extracts the round from a new or edited message event.
func scoringMessage(ev *slackevents.MessageEvent) (types.Message, bool) {
	switch ev.SubType {
	case "":
		if ev.ThreadTimeStamp != "" {
			return types.Message{}, false
		}
		return fromSlack(ev.Channel, eventMsg(ev)), true
	case "message_changed":
		edited := ev.Message
		if edited == nil || edited.ThreadTimeStamp != "" && edited.ThreadTimeStamp != edited.TimeStamp {
			return types.Message{}, false
		}
		return fromSlack(ev.Channel, eventMsg(edited)), true
	}
	return types.Message{}, false
}

// eventMsg copies the fields the referee reads out of a message event.
func eventMsg(ev *slackevents.MessageEvent) slack.Msg {
	return slack.Msg{Timestamp: ev.TimeStamp, User: ev.User, BotID: ev.BotID, Text: ev.Text}
}

func (b *Bot) handleRound(ctx context.Context, msg types.Message) {
	out, err := b.handler.Handle(ctx, msg)
	log := b.log.With(zap.String("message", msg.ID))
	var pe *referee.PlatformError
	switch {
	case errors.Is(err, referee.ErrNotScoreboard):
		log.Debug("not a scoreboard")
	case errors.Is(err, referee.ErrNoPreviousRound):
		log.Info("no previous round found, skipping")
	case errors.As(err, &pe):
		log.Error("slack call failed", zap.String("op", pe.Op), zap.Error(pe.Err))
	case err != nil:
		log.Error("round not checked", zap.Error(err))
	default:
		log.Debug("round checked", zap.Bool("valid", out.Valid))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg types.Message) {
	if _, err := b.handler.HandleCommand(ctx, msg); err != nil {
		b.log.Error("command failed", zap.String("message", msg.ID), zap.Error(err))
	}
}
