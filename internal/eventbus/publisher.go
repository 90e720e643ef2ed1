package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/toppings/giveandtake/internal/types"
)

// ErrNotConnected is returned by Publish before the first successful connect.
var ErrNotConnected = errors.New("eventbus: not connected to NATS")

// Publisher sends round events to JetStream. It implements referee.OutcomeSink.
type Publisher struct {
	url    string
	prefix string
	log    *zap.Logger

	// Initial connect backoff; tests shorten these.
	initialInterval time.Duration
	maxInterval     time.Duration

	mu    sync.RWMutex
	nc    *nats.Conn
	js    nats.JetStreamContext
	ready chan struct{}
}

// NewPublisher returns a publisher for the NATS server at url. Nothing is
// dialed until Run.
func NewPublisher(url, prefix string, log *zap.Logger) *Publisher {
	return &Publisher{
		url:             url,
		prefix:          normalizePrefix(prefix),
		log:             log.Named("eventbus"),
		initialInterval: time.Second,
		maxInterval:     30 * time.Second,
		ready:           make(chan struct{}),
	}
}

// Ready is closed once the publisher has connected and the stream exists.
func (p *Publisher) Ready() <-chan struct{} {
	return p.ready
}

// Run connects to NATS, retrying with exponential backoff until it succeeds
// or ctx is canceled, then keeps the connection until ctx is canceled. Once
// connected the nats client handles reconnects itself.
func (p *Publisher) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.MaxInterval = p.maxInterval
	b.MaxElapsedTime = 0 // retry until canceled

	err := backoff.RetryNotify(func() error {
		return p.connect()
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		p.log.Warn("nats connect failed", zap.Error(err), zap.Duration("retry_in", wait))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	close(p.ready)

	<-ctx.Done()
	p.close()
	return nil
}

func (p *Publisher) connect() error {
	nc, err := nats.Connect(p.url,
		nats.Name("giveandtake-referee"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				p.log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			p.log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return fmt.Errorf("jetstream context: %w", err)
	}
	if err := EnsureStreams(js, p.prefix); err != nil {
		nc.Close()
		return err
	}

	p.mu.Lock()
	p.nc, p.js = nc, js
	p.mu.Unlock()
	p.log.Info("connected", zap.String("url", p.url), zap.String("stream", StreamRoundEvents))
	return nil
}

func (p *Publisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nc != nil {
		_ = p.nc.Drain()
		p.nc.Close()
		p.nc, p.js = nil, nil
	}
}

// Publish sends the events for one verdict. Each event carries its ID as the
// JetStream message ID, so re-checking an edited message whose verdict did
// not change publishes nothing new within DuplicateWindow.
func (p *Publisher) Publish(ctx context.Context, msg types.Message, out types.Outcome) error {
	p.mu.RLock()
	js := p.js
	p.mu.RUnlock()
	if js == nil {
		return ErrNotConnected
	}

	for _, ev := range EventsFor(msg, out, time.Now()) {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", ev.Type, err)
		}
		if _, err := js.Publish(SubjectForEvent(p.prefix, ev.Type), data, nats.MsgId(ev.ID), nats.Context(ctx)); err != nil {
			return fmt.Errorf("publish %s event: %w", ev.Type, err)
		}
	}
	return nil
}
