package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sinsfetch/sinsfetch/pkg/logger"
)

func TestValidateCron(t *testing.T) {
	valid := []string{"* * * * *", "0 3 * * *", "*/15 * * * 1-5"}
	for _, expr := range valid {
		if err := ValidateCron(expr); err != nil {
			t.Errorf("ValidateCron(%q) = %v", expr, err)
		}
	}
	invalid := []string{"", "* * * *", "0 0 0 * * *", "61 * * * *", "bad-cron"}
	for _, expr := range invalid {
		if err := ValidateCron(expr); err == nil {
			t.Errorf("ValidateCron(%q) accepted", expr)
		}
	}
}

func TestNextCronOccurrence(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	next, err := nextCronOccurrence("30 10 * * *", start)
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("next = %s, want %s", next, want)
	}
}

func TestRecurringRunsPassAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var passes int
	r := &Recurring{
		Expr: "* * * * *",
		Log:  logger.NewMockLogger(),
		Pass: func(ctx context.Context) error {
			passes++
			cancel()
			return nil
		},
	}
	err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if passes != 1 {
		t.Fatalf("passes = %d, want 1", passes)
	}
}

func TestRecurringLogsFailedPass(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	log := logger.NewMockLogger()
	r := &Recurring{
		Expr: "* * * * *",
		Log:  log,
		Pass: func(ctx context.Context) error { return errors.New("network down") },
	}
	if err := r.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if len(log.Errors()) != 1 {
		t.Fatalf("errors logged = %d, want 1", len(log.Errors()))
	}
}

func TestRecurringRejectsBadExpr(t *testing.T) {
	r := &Recurring{Expr: "nope", Pass: func(context.Context) error { t.Fatal("pass ran"); return nil }}
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("bad expression accepted")
	}
}

func TestSleepUntilPast(t *testing.T) {
	if err := sleepUntil(context.Background(), time.Now().Add(-time.Second), time.Now); err != nil {
		t.Fatal(err)
	}
}
