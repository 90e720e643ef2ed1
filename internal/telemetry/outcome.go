package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/toppings/giveandtake/internal/referee"
	"github.com/toppings/giveandtake/internal/types"
)

var (
	roundsOnce sync.Once
	rounds     metric.Int64Counter
	deaths     metric.Int64Counter
)

func outcomeInstruments() {
	m := Meter("")
	rounds, _ = m.Int64Counter("giveandtake.rounds",
		metric.WithDescription("Scoreboard rounds checked, by verdict"),
	)
	deaths, _ = m.Int64Counter("giveandtake.deaths",
		metric.WithDescription("Items killed"),
	)
}

// Verdict labels an outcome for metrics: "valid" or "invalid".
func Verdict(out types.Outcome) string {
	if out.Valid {
		return "valid"
	}
	return "invalid"
}

// RecordOutcome counts one verdict. Instruments are created on first use so
// they bind to whatever provider Init installed.
func RecordOutcome(ctx context.Context, out types.Outcome) {
	roundsOnce.Do(outcomeInstruments)
	rounds.Add(ctx, 1, metric.WithAttributes(attribute.String("verdict", Verdict(out))))
	if out.Valid && out.Death != nil {
		deaths.Add(ctx, 1, metric.WithAttributes(attribute.String("item", string(*out.Death))))
	}
}

// OutcomeSink adapts RecordOutcome for referee.WithSink.
func OutcomeSink() referee.OutcomeSink {
	return referee.OutcomeSinkFunc(func(ctx context.Context, _ types.Message, out types.Outcome) error {
		RecordOutcome(ctx, out)
		return nil
	})
}
