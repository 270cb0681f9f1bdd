package domain

import "time"

// Post represents a single post visible on the target group page.
type Post struct {
	ID        string
	GroupID   string
	Author    string
	Content   string
	URL       string
	Timestamp string
	ScrapedAt time.Time
}

// SessionReport summarizes one run of the commenting loop.
type SessionReport struct {
	TotalPosts  int
	Succeeded   int
	Failed      int
	Skipped     int
	SafetyStops int
	StartedAt   time.Time
	FinishedAt  time.Time
}
