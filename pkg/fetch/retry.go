package fetch

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

const (
	DefMaxRetries    = 3
	DefBaseDelay     = 500 * time.Millisecond
	DefMaxDelay      = 30 * time.Second
	DefJitterFactor  = 0.5
	DefBackoffFactor = 2.0
)

// RetryConfig controls how often a single transfer is re-attempted after a
// transient error. Each attempt resumes from the bytes already on disk.
type RetryConfig struct {
	MaxRetries    int // 0 disables retries
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterFactor  float64 // 0-1
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    DefMaxRetries,
		BaseDelay:     DefBaseDelay,
		MaxDelay:      DefMaxDelay,
		JitterFactor:  DefJitterFactor,
		BackoffFactor: DefBackoffFactor,
	}
}

// ErrorCategory classifies errors for retry decisions.
type ErrorCategory int

const (
	ErrCategoryFatal ErrorCategory = iota
	ErrCategoryRetryable
	ErrCategoryThrottled
)

// ClassifyError decides whether err is worth retrying.
func ClassifyError(err error) ErrorCategory {
	if err == nil || errors.Is(err, context.Canceled) {
		return ErrCategoryFatal
	}

	var serr *StatusError
	if errors.As(err, &serr) {
		switch {
		case serr.Code == 429 || serr.Code == 503:
			return ErrCategoryThrottled
		case serr.Code >= 500:
			return ErrCategoryRetryable
		default:
			return ErrCategoryFatal
		}
	}

	var terr *TransferError
	if errors.As(err, &terr) {
		if terr.IsTransient() {
			return ErrCategoryRetryable
		}
		return ErrCategoryFatal
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrCategoryRetryable
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrCategoryRetryable
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.EPIPE, syscall.ETIMEDOUT:
			return ErrCategoryRetryable
		}
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "broken pipe", "timeout", "temporary failure"} {
		if strings.Contains(msg, pattern) {
			return ErrCategoryRetryable
		}
	}
	return ErrCategoryFatal
}

// Backoff returns the delay before retry number attempt (1-based).
func (c *RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(c.BaseDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if c.JitterFactor > 0 {
		delay *= 1 + c.JitterFactor*(2*rand.Float64()-1)
	}
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.BaseDelay)
	}
	return time.Duration(delay)
}

// Retrying wraps a Transfer and retries transient failures.
type Retrying struct {
	Next   Transfer
	Config RetryConfig
	Log    logger.Logger
	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrying(next Transfer, cfg RetryConfig, l logger.Logger) *Retrying {
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Retrying{Next: next, Config: cfg, Log: l, sleep: sleepCtx}
}

func (r *Retrying) Fetch(ctx context.Context, rawURL, dest string, p Progress) error {
	sleep := r.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	for attempt := 1; ; attempt++ {
		err := r.Next.Fetch(ctx, rawURL, dest, p)
		if err == nil {
			return nil
		}
		cat := ClassifyError(err)
		if cat == ErrCategoryFatal || attempt > r.Config.MaxRetries || ctx.Err() != nil {
			return err
		}
		delay := r.Config.Backoff(attempt)
		if cat == ErrCategoryThrottled {
			delay = min(2*delay, r.Config.MaxDelay)
		}
		r.Log.Warning("%s: attempt %d/%d failed (%v), retrying in %s",
			dest, attempt, r.Config.MaxRetries+1, err, delay.Round(time.Millisecond))
		if serr := sleep(ctx, delay); serr != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
