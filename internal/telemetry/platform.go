package telemetry

import (
	"context"
	"iter"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/types"
)

const platformScopeName = "github.com/toppings/giveandtake/platform"

// InstrumentedPlatform wraps referee.Platform with OTel tracing and metrics.
// Every method gets a span and is counted in giveandtake.platform.* metrics.
// Use WrapPlatform to create one; it returns the original platform unchanged
// when telemetry is disabled.
type InstrumentedPlatform struct {
	inner  referee.Platform
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapPlatform returns p decorated with OTel instrumentation.
// When telemetry is disabled, p is returned as-is with zero overhead.
func WrapPlatform(p referee.Platform) referee.Platform {
	if !Enabled() {
		return p
	}
	m := Meter(platformScopeName)
	ops, _ := m.Int64Counter("giveandtake.platform.operations",
		metric.WithDescription("Total chat platform calls"),
	)
	dur, _ := m.Float64Histogram("giveandtake.platform.operation.duration",
		metric.WithDescription("Chat platform call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("giveandtake.platform.errors",
		metric.WithDescription("Total failed chat platform calls"),
	)
	return &InstrumentedPlatform{
		inner:  p,
		tracer: Tracer(platformScopeName),
		ops:    ops,
		dur:    dur,
		errs:   errs,
	}
}

// op starts a span and records a metric for the named platform call.
func (p *InstrumentedPlatform) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("platform.operation", name)}, attrs...)
	ctx, span := p.tracer.Start(ctx, "platform."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	p.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (p *InstrumentedPlatform) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	p.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// MessagesBefore traces the whole scan; the span records how many messages
// the caller pulled before stopping.
func (p *InstrumentedPlatform) MessagesBefore(ctx context.Context, msg types.Message) iter.Seq2[types.Message, error] {
	return func(yield func(types.Message, error) bool) {
		attrs := []attribute.KeyValue{attribute.String("chat.channel", msg.ChannelID)}
		ctx, span, t := p.op(ctx, "MessagesBefore", attrs...)
		var err error
		n := 0
		for m, e := range p.inner.MessagesBefore(ctx, msg) {
			if e != nil {
				err = e
			} else {
				n++
			}
			if !yield(m, e) {
				break
			}
		}
		span.SetAttributes(attribute.Int("chat.messages_scanned", n))
		p.done(ctx, span, t, err, attrs...)
	}
}

func (p *InstrumentedPlatform) PinnedMessages(ctx context.Context, channelID string) ([]types.Message, error) {
	attrs := []attribute.KeyValue{attribute.String("chat.channel", channelID)}
	ctx, span, t := p.op(ctx, "PinnedMessages", attrs...)
	v, err := p.inner.PinnedMessages(ctx, channelID)
	p.done(ctx, span, t, err, attrs...)
	return v, err
}

func (p *InstrumentedPlatform) Send(ctx context.Context, channelID, text string) (types.Message, error) {
	attrs := []attribute.KeyValue{attribute.String("chat.channel", channelID)}
	ctx, span, t := p.op(ctx, "Send", attrs...)
	v, err := p.inner.Send(ctx, channelID, text)
	p.done(ctx, span, t, err, attrs...)
	return v, err
}

func (p *InstrumentedPlatform) Edit(ctx context.Context, msg types.Message, text string) error {
	attrs := []attribute.KeyValue{attribute.String("chat.channel", msg.ChannelID)}
	ctx, span, t := p.op(ctx, "Edit", attrs...)
	err := p.inner.Edit(ctx, msg, text)
	p.done(ctx, span, t, err, attrs...)
	return err
}

func (p *InstrumentedPlatform) Pin(ctx context.Context, msg types.Message) error {
	attrs := []attribute.KeyValue{attribute.String("chat.channel", msg.ChannelID)}
	ctx, span, t := p.op(ctx, "Pin", attrs...)
	err := p.inner.Pin(ctx, msg)
	p.done(ctx, span, t, err, attrs...)
	return err
}

func (p *InstrumentedPlatform) AddReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error {
	attrs := []attribute.KeyValue{attribute.String("chat.emoji", string(emoji))}
	ctx, span, t := p.op(ctx, "AddReaction", attrs...)
	err := p.inner.AddReaction(ctx, msg, emoji)
	p.done(ctx, span, t, err, attrs...)
	return err
}

func (p *InstrumentedPlatform) RemoveReaction(ctx context.Context, msg types.Message, emoji types.Emoji) error {
	attrs := []attribute.KeyValue{attribute.String("chat.emoji", string(emoji))}
	ctx, span, t := p.op(ctx, "RemoveReaction", attrs...)
	err := p.inner.RemoveReaction(ctx, msg, emoji)
	p.done(ctx, span, t, err, attrs...)
	return err
}

func (p *InstrumentedPlatform) IsAdmin(ctx context.Context, userID string) (bool, error) {
	ctx, span, t := p.op(ctx, "IsAdmin")
	v, err := p.inner.IsAdmin(ctx, userID)
	p.done(ctx, span, t, err)
	return v, err
}

func (p *InstrumentedPlatform) SelfID() string {
	return p.inner.SelfID()
}
