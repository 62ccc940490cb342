package handlers

import (
	"context"

	"github.com/pagewright/pagewright/internal/llm"
	"github.com/pagewright/pagewright/internal/metrics"
	"github.com/pagewright/pagewright/internal/models"
	"github.com/pagewright/pagewright/internal/parser"
)

// defaultParseAttempts is used when Dependencies.ParseAttempts is unset:
// two normal attempts, then the one strict attempt.
const defaultParseAttempts = 2

// completeEnvelope calls the gateway and parses the reply into an
// envelope. Unparsable output is retried with the normal hint up to
// ParseAttempts times, then once with the strict prompt variant; if that
// also fails the default envelope is returned, so callers always receive
// a valid result. Gateway errors are never retried here and propagate
// immediately.
func (d *Dependencies) completeEnvelope(ctx context.Context, messages []models.Message) (*models.Envelope, error) {
	attempts := d.ParseAttempts
	if attempts <= 0 {
		attempts = defaultParseAttempts
	}

	for attempt := 0; attempt <= attempts; attempt++ {
		hint := envelopeHint
		if attempt == attempts {
			hint = strictEnvelopeHint
		}

		raw, err := d.Gateway.Invoke(ctx, messages, &llm.InvokeOptions{SchemaHint: hint})
		if err != nil {
			return nil, err
		}

		env, strategy, perr := parser.ParseEnvelope(raw)
		if perr == nil {
			if strategy != "direct" {
				d.logger().Debug("envelope recovered", "strategy", strategy, "attempt", attempt+1)
			}
			return env, nil
		}

		d.logger().Warn("envelope parse failed", "attempt", attempt+1, "strict", attempt == attempts)
		if d.Metrics != nil {
			d.Metrics.Increment(metrics.CounterParseRetries)
		}
	}

	d.logger().Warn("all envelope parse attempts exhausted, returning default")
	if d.Metrics != nil {
		d.Metrics.Increment(metrics.CounterDefaultEnvelopes)
	}
	env := models.DefaultEnvelope()
	return &env, nil
}
