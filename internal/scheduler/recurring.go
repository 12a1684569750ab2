package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

const maxSleepCap = 60 * time.Second

// ValidateCron accepts a 5-field cron expression (minute hour day-of-month
// month day-of-week) with at least one occurrence within a year.
func ValidateCron(expr string) error {
	// gronx also accepts a seconds field; passes are minute-grained.
	if len(strings.Fields(expr)) != 5 || !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	if !hasOccurrenceWithinYear(expr, time.Now()) {
		return fmt.Errorf("cron expression %q never fires within a year", expr)
	}
	return nil
}

// nextCronOccurrence returns the next time the cron expression fires strictly
// after start.
func nextCronOccurrence(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

func hasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}

// Recurring runs Pass once immediately and then at every occurrence of Expr
// until the context is cancelled. A failing pass is logged; the next tick
// runs regardless.
type Recurring struct {
	Expr string
	Pass func(ctx context.Context) error
	Log  logger.Logger
	// now is swapped in tests.
	now func() time.Time
}

func (r *Recurring) Run(ctx context.Context) error {
	if err := ValidateCron(r.Expr); err != nil {
		return err
	}
	now := r.now
	if now == nil {
		now = time.Now
	}
	log := r.Log
	if log == nil {
		log = logger.NewNopLogger()
	}

	for pass := 1; ; pass++ {
		log.Debug("recurring: pass %d", pass)
		if err := r.Pass(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("recurring: pass %d: %v", pass, err)
		}

		next, err := nextCronOccurrence(r.Expr, now())
		if err != nil {
			return err
		}
		log.Info("next pass at %s", next.Format(time.RFC3339))
		if err := sleepUntil(ctx, next, now); err != nil {
			return err
		}
	}
}

// sleepUntil waits for the wall clock to reach t, re-checking at least every
// maxSleepCap.
func sleepUntil(ctx context.Context, t time.Time, now func() time.Time) error {
	for {
		d := t.Sub(now())
		if d <= 0 {
			return nil
		}
		if d > maxSleepCap {
			d = maxSleepCap
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
