package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"pdf-translator/internal/logger"
)

const (
	DefaultMaxAttempts    = 5
	DefaultBaseRetryDelay = time.Second
	DefaultBaseTimeout    = 30 * time.Second
	DefaultMaxTimeout     = 180 * time.Second
	// one extra second of timeout per this many runes
	runesPerTimeoutSecond = 100
)

// ErrEmptyResponse marks an attempt whose reply was blank.
var ErrEmptyResponse = errors.New("empty translation response")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleep is the real Sleeper.
func ContextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InvokerOptions 重试与超时参数
type InvokerOptions struct {
	MaxAttempts    int
	BaseRetryDelay time.Duration
	BaseTimeout    time.Duration
	MaxTimeout     time.Duration
	Sleep          Sleeper
}

func (o InvokerOptions) withDefaults() InvokerOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseRetryDelay <= 0 {
		o.BaseRetryDelay = DefaultBaseRetryDelay
	}
	if o.BaseTimeout <= 0 {
		o.BaseTimeout = DefaultBaseTimeout
	}
	if o.MaxTimeout <= 0 {
		o.MaxTimeout = DefaultMaxTimeout
	}
	if o.MaxTimeout < o.BaseTimeout {
		o.MaxTimeout = o.BaseTimeout
	}
	if o.Sleep == nil {
		o.Sleep = ContextSleep
	}
	return o
}

// Attempt records one call to the backend.
type Attempt struct {
	Number     int
	WaitBefore time.Duration
	Text       string
	Err        error
}

// Outcome is the result of Invoke. Exactly one of Text and Err is
// meaningful: Err is nil on success.
type Outcome struct {
	Text     string
	Err      error
	Attempts []Attempt
}

func (o Outcome) OK() bool { return o.Err == nil }

// Retries is the number of attempts after the first.
func (o Outcome) Retries() int { return max(len(o.Attempts)-1, 0) }

// Invoker calls a Backend with a per-call timeout and exponential backoff.
// It never panics on backend errors; failures are returned in Outcome.
type Invoker struct {
	backend    Backend
	opts       InvokerOptions
	sourceLang string
	targetLang string
}

func NewInvoker(backend Backend, sourceLang, targetLang string, opts InvokerOptions) *Invoker {
	return &Invoker{
		backend:    backend,
		opts:       opts.withDefaults(),
		sourceLang: sourceLang,
		targetLang: targetLang,
	}
}

func (iv *Invoker) Backend() Backend { return iv.backend }

// Timeout returns the per-call timeout for text: the base timeout plus one
// second per 100 runes, capped at the maximum.
func (iv *Invoker) Timeout(text string) time.Duration {
	d := iv.opts.BaseTimeout + time.Duration(utf8.RuneCountInString(text)/runesPerTimeoutSecond)*time.Second
	return min(d, iv.opts.MaxTimeout)
}

// Backoff is the wait before attempt n (1-based): none before the first,
// then BaseRetryDelay doubled each time.
func (iv *Invoker) Backoff(n int) time.Duration {
	if n <= 1 {
		return 0
	}
	return iv.opts.BaseRetryDelay << (n - 2)
}

// Invoke translates text, retrying failed or blank replies. A cancelled ctx
// ends the loop early with the context error.
func (iv *Invoker) Invoke(ctx context.Context, text string) Outcome {
	var out Outcome
	timeout := iv.Timeout(text)

	for n := 1; n <= iv.opts.MaxAttempts; n++ {
		wait := iv.Backoff(n)
		if wait > 0 {
			logger.Debug("retrying translation",
				logger.Int("attempt", n),
				logger.Duration("wait", wait))
			if err := iv.opts.Sleep(ctx, wait); err != nil {
				out.Err = fmt.Errorf("translation cancelled before attempt %d: %w", n, err)
				return out
			}
		}

		reply, err := iv.call(ctx, text, timeout)
		out.Attempts = append(out.Attempts, Attempt{Number: n, WaitBefore: wait, Text: reply, Err: err})
		if err == nil {
			out.Text = reply
			out.Err = nil
			return out
		}
		out.Err = err
		logger.Warn("translation attempt failed",
			logger.String("backend", iv.backend.Name()),
			logger.Int("attempt", n),
			logger.Int("maxAttempts", iv.opts.MaxAttempts),
			logger.Err(err))

		if ctx.Err() != nil {
			out.Err = fmt.Errorf("translation cancelled: %w", ctx.Err())
			return out
		}
	}
	out.Err = fmt.Errorf("translation failed after %d attempts: %w", len(out.Attempts), out.Err)
	return out
}

func (iv *Invoker) call(ctx context.Context, text string, timeout time.Duration) (result string, err error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result, err = "", fmt.Errorf("backend panic: %v", r)
		}
	}()

	result, err = iv.backend.Translate(callCtx, text, iv.sourceLang, iv.targetLang)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(result) == "" {
		return "", ErrEmptyResponse
	}
	return result, nil
}
