package ports

import (
	"context"
	"time"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
)

// Site is the adapter for the target platform: it owns the authenticated
// session, enumerates group posts and submits comments.
type Site interface {
	Name() string
	Login(ctx context.Context) error
	FetchGroupPosts(ctx context.Context, limit int) ([]domain.Post, error)
	CreateComment(ctx context.Context, postID string, text string) error
}

// Composer produces the comment text for a post.
type Composer interface {
	Compose(ctx context.Context, post domain.Post) (string, error)
}

// Storage persists the seen-set and the rate counters across runs.
type Storage interface {
	IsCommented(ctx context.Context, postID string) (bool, error)
	MarkCommented(ctx context.Context, postID string) error
	CommentedCount(ctx context.Context) (int, error)

	CommentStats(ctx context.Context) (count int, lastDate string, err error)
	IncrementToday(ctx context.Context, date string) error

	HourlyTimestamps(ctx context.Context) ([]time.Time, error)
	AppendTimestamp(ctx context.Context, t time.Time) error
}

type UserAction string

const (
	ActionApprove UserAction = "approve"
	ActionSkip    UserAction = "skip"
)

// Interaction is an optional human-in-the-loop surface. A nil Interaction
// means every proposed comment is auto-approved.
type Interaction interface {
	Confirm(ctx context.Context, title, body string) (UserAction, error)
	Report(ctx context.Context, report domain.SessionReport) error
}
