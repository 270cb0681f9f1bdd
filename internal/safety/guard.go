// Package safety decides, for every candidate post, whether the bot is
// allowed to act on it. It is the only place that knows about the seen-set,
// the per-run/daily/hourly caps and the error circuit breaker.
package safety

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

const dateLayout = "2006-01-02"

// Limits are the knobs of the guard, taken from the config at startup.
type Limits struct {
	MaxPerRun            int
	MaxPerDay            int
	MaxPerHour           int
	MaxConsecutiveErrors int
	MinDelay             time.Duration
	MaxDelay             time.Duration
}

// Guard enforces the check-then-act policy. The duplicate rule is evaluated
// before any rate rule: a duplicate candidate consumes no budget and
// advances no delay. Not safe for concurrent use; the run loop is sequential.
type Guard struct {
	store  ports.Storage
	limits Limits

	allowedThisRun int
	errorStreak    int

	now func() time.Time
}

func NewGuard(store ports.Storage, limits Limits) *Guard {
	return &Guard{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
}

// CanComment reports whether acting on postID is allowed right now, with a
// human-readable reason when it is not.
func (g *Guard) CanComment(ctx context.Context, postID string) (bool, string, error) {
	seen, err := g.store.IsCommented(ctx, postID)
	if err != nil {
		return false, "", err
	}
	if seen {
		return false, "already commented on this post", nil
	}

	if g.allowedThisRun >= g.limits.MaxPerRun {
		return false, fmt.Sprintf("run limit reached (%d)", g.limits.MaxPerRun), nil
	}

	today, err := g.commentsToday(ctx)
	if err != nil {
		return false, "", err
	}
	if today >= g.limits.MaxPerDay {
		return false, fmt.Sprintf("daily comment limit reached (%d)", g.limits.MaxPerDay), nil
	}

	hourly, err := g.commentsThisHour(ctx)
	if err != nil {
		return false, "", err
	}
	if hourly >= g.limits.MaxPerHour {
		return false, fmt.Sprintf("hourly comment limit reached (%d)", g.limits.MaxPerHour), nil
	}

	if g.errorStreak >= g.limits.MaxConsecutiveErrors {
		return false, fmt.Sprintf("too many consecutive errors (%d)", g.errorStreak), nil
	}

	return true, "", nil
}

// RecordComment records the outcome of an attempted action that passed
// CanComment. A success adds the post to the seen-set permanently and
// consumes rate budget; a failure only advances the error streak.
func (g *Guard) RecordComment(ctx context.Context, postID string, success bool) error {
	g.allowedThisRun++
	if !success {
		g.errorStreak++
		return nil
	}

	now := g.now()
	if err := g.store.MarkCommented(ctx, postID); err != nil {
		return err
	}
	if err := g.store.IncrementToday(ctx, now.Format(dateLayout)); err != nil {
		return err
	}
	if err := g.store.AppendTimestamp(ctx, now); err != nil {
		return err
	}
	g.errorStreak = 0
	return nil
}

// Delay draws the pause to impose before the next candidate, uniform within
// the configured range.
func (g *Guard) Delay() time.Duration {
	min, max := g.limits.MinDelay, g.limits.MaxDelay
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}

// ShouldTakeBreak reports whether the session should stop early even though
// individual candidates might still pass CanComment.
func (g *Guard) ShouldTakeBreak(ctx context.Context) (bool, string, error) {
	today, err := g.commentsToday(ctx)
	if err != nil {
		return false, "", err
	}
	if float64(today) >= float64(g.limits.MaxPerDay)*0.8 {
		return true, "approaching daily comment limit", nil
	}

	hourly, err := g.commentsThisHour(ctx)
	if err != nil {
		return false, "", err
	}
	if float64(hourly) >= float64(g.limits.MaxPerHour)*0.8 {
		return true, "high activity in the past hour", nil
	}

	if g.errorStreak >= 3 {
		return true, fmt.Sprintf("multiple consecutive errors (%d)", g.errorStreak), nil
	}

	return false, "", nil
}

// Status is the snapshot logged at session start.
type Status struct {
	CommentsToday  int
	DailyLimit     int
	CommentsHourly int
	HourlyLimit    int
	TotalCommented int
}

func (g *Guard) Status(ctx context.Context) (Status, error) {
	today, err := g.commentsToday(ctx)
	if err != nil {
		return Status{}, err
	}
	hourly, err := g.commentsThisHour(ctx)
	if err != nil {
		return Status{}, err
	}
	total, err := g.store.CommentedCount(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		CommentsToday:  today,
		DailyLimit:     g.limits.MaxPerDay,
		CommentsHourly: hourly,
		HourlyLimit:    g.limits.MaxPerHour,
		TotalCommented: total,
	}, nil
}

// commentsToday reads the persisted daily counter, treating a stale date as
// a fresh day.
func (g *Guard) commentsToday(ctx context.Context) (int, error) {
	count, lastDate, err := g.store.CommentStats(ctx)
	if err != nil {
		return 0, err
	}
	if lastDate != g.now().Format(dateLayout) {
		return 0, nil
	}
	return count, nil
}

func (g *Guard) commentsThisHour(ctx context.Context) (int, error) {
	stamps, err := g.store.HourlyTimestamps(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := g.now().Add(-time.Hour)
	n := 0
	for _, ts := range stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n, nil
}
