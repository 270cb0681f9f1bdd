package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

// PostgresStorage is the pgx-backed alternative to JSONStorage, used when
// DATABASE_URL is set so the seen-set survives the machine the bot runs on.
type PostgresStorage struct {
	Pool *pgxpool.Pool
}

func NewPostgresStorage(ctx context.Context, connStr string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	s := &PostgresStorage{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

var _ ports.Storage = (*PostgresStorage)(nil)

func (s *PostgresStorage) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS commented_posts (post_id TEXT PRIMARY KEY, created_at TIMESTAMPTZ DEFAULT NOW())`,
		`CREATE TABLE IF NOT EXISTS comment_stats (id INT PRIMARY KEY DEFAULT 1, count INT NOT NULL DEFAULT 0, last_date TEXT NOT NULL DEFAULT '')`,
		`CREATE TABLE IF NOT EXISTS comment_times (ts TIMESTAMPTZ NOT NULL)`,
	}
	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) IsCommented(ctx context.Context, postID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM commented_posts WHERE post_id=$1)", postID).Scan(&exists)
	return exists, err
}

func (s *PostgresStorage) MarkCommented(ctx context.Context, postID string) error {
	_, err := s.Pool.Exec(ctx,
		"INSERT INTO commented_posts (post_id) VALUES ($1) ON CONFLICT DO NOTHING", postID)
	return err
}

func (s *PostgresStorage) CommentedCount(ctx context.Context) (int, error) {
	var count int
	err := s.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM commented_posts").Scan(&count)
	return count, err
}

func (s *PostgresStorage) CommentStats(ctx context.Context) (int, string, error) {
	var count int
	var lastDate string
	err := s.Pool.QueryRow(ctx,
		"SELECT count, last_date FROM comment_stats WHERE id = 1").Scan(&count, &lastDate)
	if errors.Is(err, pgx.ErrNoRows) {
		// No row yet means no comments ever; anything else must surface so
		// the caps are never judged against phantom zeros.
		return 0, "", nil
	}
	if err != nil {
		return 0, "", err
	}
	return count, lastDate, nil
}

func (s *PostgresStorage) IncrementToday(ctx context.Context, date string) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO comment_stats (id, count, last_date) VALUES (1, 1, $1)
		 ON CONFLICT (id) DO UPDATE SET
		 count = CASE WHEN comment_stats.last_date = $1 THEN comment_stats.count + 1 ELSE 1 END,
		 last_date = $1`,
		date)
	return err
}

func (s *PostgresStorage) HourlyTimestamps(ctx context.Context) ([]time.Time, error) {
	rows, err := s.Pool.Query(ctx,
		"SELECT ts FROM comment_times WHERE ts > NOW() - INTERVAL '1 hour' ORDER BY ts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var ts time.Time
		if err := rows.Scan(&ts); err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) AppendTimestamp(ctx context.Context, t time.Time) error {
	if _, err := s.Pool.Exec(ctx,
		"DELETE FROM comment_times WHERE ts <= $1", t.Add(-time.Hour)); err != nil {
		return err
	}
	_, err := s.Pool.Exec(ctx, "INSERT INTO comment_times (ts) VALUES ($1)", t)
	return err
}

func (s *PostgresStorage) Close() {
	s.Pool.Close()
}
