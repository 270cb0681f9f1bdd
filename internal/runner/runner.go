// Package runner owns the sequential session: authenticate, enumerate,
// check-then-act per post, sleep, report. There is deliberately no
// concurrency here; the rate-limit sleep is the only suspension point.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
	"github.com/Wilfredoo/jdgrowthscraper/internal/safety"
)

var ErrLoginAborted = errors.New("authentication failed, aborting run")

// Progressive backoff between submission retries.
var retryDelays = []time.Duration{
	5 * time.Second,
	10 * time.Second,
	20 * time.Second,
	30 * time.Second,
	60 * time.Second,
}

// Error substrings after which retrying a submission is pointless or unsafe.
var criticalErrors = []string{
	"invalid session",
	"account suspended",
	"rate limit",
	"blocked",
	"login required",
	"login failed",
}

type Runner struct {
	Site     ports.Site
	Composer ports.Composer
	Guard    *safety.Guard
	UI       ports.Interaction // optional
	Log      *slog.Logger

	MaxPosts   int
	MaxRetries int

	sleep func(ctx context.Context, d time.Duration)
}

// outcome of one post: submitted, attempted but failed, or never attempted.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeSkipped
)

func New(site ports.Site, comp ports.Composer, guard *safety.Guard, log *slog.Logger) *Runner {
	return &Runner{
		Site:       site,
		Composer:   comp,
		Guard:      guard,
		Log:        log,
		MaxPosts:   10,
		MaxRetries: len(retryDelays),
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Run executes one complete session and returns its report. The returned
// error is non-nil only for run-aborting failures (login, navigation); a
// failed comment on an individual post is recorded in the report instead.
func (r *Runner) Run(ctx context.Context) (report domain.SessionReport, err error) {
	report.StartedAt = time.Now()
	defer func() { report.FinishedAt = time.Now() }()

	status, err := r.Guard.Status(ctx)
	if err != nil {
		return report, err
	}
	r.Log.Info("safety status",
		"comments_today", fmt.Sprintf("%d/%d", status.CommentsToday, status.DailyLimit),
		"comments_this_hour", fmt.Sprintf("%d/%d", status.CommentsHourly, status.HourlyLimit),
		"total_commented_posts", status.TotalCommented,
	)

	if stop, reason, err := r.Guard.ShouldTakeBreak(ctx); err != nil {
		return report, err
	} else if stop {
		r.Log.Warn("taking a break", "reason", reason)
		report.SafetyStops++
		return report, nil
	}

	r.Log.Info("logging in", "site", r.Site.Name())
	if err := r.Site.Login(ctx); err != nil {
		return report, fmt.Errorf("%w: %v", ErrLoginAborted, err)
	}

	r.Log.Info("scraping recent posts")
	posts, err := r.Site.FetchGroupPosts(ctx, r.MaxPosts)
	if err != nil {
		return report, fmt.Errorf("fetch posts: %w", err)
	}
	report.TotalPosts = len(posts)
	if len(posts) == 0 {
		r.Log.Warn("no posts found to process")
		return report, nil
	}

	for i, post := range posts {
		allowed, reason, err := r.Guard.CanComment(ctx, post.ID)
		if err != nil {
			return report, err
		}
		if !allowed {
			r.Log.Info("skipping post", "post", post.ID, "author", post.Author, "reason", reason)
			report.Skipped++
			continue
		}

		r.Log.Info("commenting on post",
			"n", fmt.Sprintf("%d/%d", i+1, len(posts)), "post", post.ID, "author", post.Author)

		res := r.commentOnce(ctx, post)
		if res == outcomeSkipped {
			// Nothing was attempted against the site: no budget consumed,
			// no error streak, no rate-limit sleep.
			report.Skipped++
			continue
		}
		if err := r.Guard.RecordComment(ctx, post.ID, res == outcomeSuccess); err != nil {
			return report, err
		}

		if res == outcomeSuccess {
			report.Succeeded++
		} else {
			report.Failed++
		}

		if stop, reason, err := r.Guard.ShouldTakeBreak(ctx); err != nil {
			return report, err
		} else if stop {
			r.Log.Info("stopping session for safety", "reason", reason)
			report.SafetyStops++
			break
		}

		if ctx.Err() != nil {
			break
		}

		delay := r.Guard.Delay()
		r.Log.Info("waiting before next comment", "delay", delay)
		r.sleep(ctx, delay)
	}

	r.logReport(report)
	if r.UI != nil {
		report.FinishedAt = time.Now()
		if err := r.UI.Report(ctx, report); err != nil {
			r.Log.Warn("failed to deliver session report", "err", err)
		}
	}
	return report, nil
}

// commentOnce composes, optionally confirms, and submits one comment with
// progressive retries (up to MaxRetries retries after the first attempt). It
// never aborts the run; a rejected or failed post just moves the loop on.
func (r *Runner) commentOnce(ctx context.Context, post domain.Post) outcome {
	text, err := r.Composer.Compose(ctx, post)
	if err != nil {
		r.Log.Error("failed to compose comment", "post", post.ID, "err", err)
		return outcomeFailed
	}

	if r.UI != nil {
		title := fmt.Sprintf("Comment on post by %s", post.Author)
		body := fmt.Sprintf("Post: %s\n\nProposed comment: %s", post.Content, text)
		action, err := r.UI.Confirm(ctx, title, body)
		if err != nil {
			r.Log.Warn("approval unavailable, skipping post", "post", post.ID, "err", err)
			return outcomeSkipped
		}
		if action != ports.ActionApprove {
			r.Log.Info("comment rejected by operator", "post", post.ID)
			return outcomeSkipped
		}
	}

	for attempt := 0; ; attempt++ {
		err := r.Site.CreateComment(ctx, post.ID, text)
		if err == nil {
			return outcomeSuccess
		}

		if isCritical(err) {
			r.Log.Error("critical error, not retrying", "post", post.ID, "err", err)
			return outcomeFailed
		}
		if attempt >= r.MaxRetries || ctx.Err() != nil {
			r.Log.Error("giving up on post", "post", post.ID, "attempts", attempt+1, "err", err)
			return outcomeFailed
		}

		delay := retryDelays[min(attempt, len(retryDelays)-1)]
		r.Log.Warn("comment attempt failed, retrying",
			"post", post.ID, "attempt", attempt+1, "retry_in", delay, "err", err)
		r.sleep(ctx, delay)
	}
}

func isCritical(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, critical := range criticalErrors {
		if strings.Contains(msg, critical) {
			return true
		}
	}
	return false
}

func (r *Runner) logReport(report domain.SessionReport) {
	r.Log.Info("session results",
		"total_posts", report.TotalPosts,
		"successful_comments", report.Succeeded,
		"failed_comments", report.Failed,
		"skipped_posts", report.Skipped,
		"safety_stops", report.SafetyStops,
	)
}
