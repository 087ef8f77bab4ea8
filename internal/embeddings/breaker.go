package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// breakerProvider wraps a Provider with a circuit breaker: every outbound
// embeddings call is a network round trip to a third-party API, and a
// struggling provider shouldn't be hammered with retries on every
// search/create call while it's down.
type breakerProvider struct {
	base Provider
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker wraps base so Embed calls trip open after repeated failures
// instead of piling up latency against a provider that's down.
func WithBreaker(base Provider) Provider {
	if base == nil {
		return nil
	}
	st := gobreaker.Settings{
		Name:        "embeddings." + base.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
	}
	return &breakerProvider{base: base, cb: gobreaker.NewCircuitBreaker(st)}
}

func (p *breakerProvider) Name() string    { return p.base.Name() }
func (p *breakerProvider) Dimensions() int { return p.base.Dimensions() }

func (p *breakerProvider) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out, err := p.cb.Execute(func() (any, error) {
		return p.base.Embed(ctx, inputs)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, fmt.Errorf("embeddings provider %q circuit open: %w", p.base.Name(), err)
		}
		return nil, err
	}
	return out.([][]float32), nil
}
