// Package reply turns an email and a tone into a generated reply.
package reply

import (
	"context"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/hal9000y/email-writer/internal/gemini"
)

// DefaultTimeout bounds the wait for a worker plus the provider round trip.
const DefaultTimeout = 60 * time.Second

type provider interface {
	GenerateContent(ctx context.Context, prompt string) ([]byte, error)
}

// Generator builds prompts and runs them against the provider.
type Generator struct {
	provider provider
	pool     *pool
	timeout  time.Duration
}

// Option customizes a Generator.
type Option func(*generatorOptions)

type generatorOptions struct {
	workers int
	timeout time.Duration
}

// WithWorkers sets the number of concurrent provider calls.
func WithWorkers(n int) Option {
	return func(o *generatorOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *generatorOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// DefaultWorkers sizes the pool for blocking I/O.
func DefaultWorkers() int {
	return 10 * runtime.GOMAXPROCS(0)
}

// NewGenerator creates a Generator backed by p.
func NewGenerator(p provider, opts ...Option) *Generator {
	o := generatorOptions{
		workers: DefaultWorkers(),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Generator{
		provider: p,
		pool:     newPool(o.workers),
		timeout:  o.timeout,
	}
}

// Generate returns the provider's reply for req. Errors wrap ErrUpstream,
// ErrTimeout or ErrNoContent.
//
// Cancellation of ctx does not abort the provider call; only the timeout does.
func (g *Generator) Generate(ctx context.Context, req EmailRequest) (string, error) {
	logger := zerolog.Ctx(ctx)
	prompt := BuildPrompt(req)

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	start := time.Now()
	raw, err := g.pool.do(callCtx, func(ctx context.Context) ([]byte, error) {
		return g.provider.GenerateContent(ctx, prompt)
	})
	if err != nil {
		err = classify(err)
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("generate reply failed")

		return "", err
	}

	text, ok := gemini.ExtractText(raw)
	if !ok {
		logger.Warn().Int("body_bytes", len(raw)).Msg("response has no candidate text")

		return "", ErrNoContent
	}

	logger.Debug().Dur("elapsed", time.Since(start)).Int("reply_bytes", len(text)).Msg("reply generated")

	return text, nil
}

// Reply is Generate rendered through Text. It never fails.
func (g *Generator) Reply(ctx context.Context, req EmailRequest) string {
	return Text(g.Generate(ctx, req))
}
