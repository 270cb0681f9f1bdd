package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingCredentials = errors.New("missing FACEBOOK_EMAIL or FACEBOOK_PASSWORD")
	ErrMissingGroup       = errors.New("missing GROUP_ID")
	ErrBadDelayRange      = errors.New("MIN_COMMENT_DELAY must not exceed MAX_COMMENT_DELAY")
)

// Config holds everything the run needs. It is loaded once at startup and
// never mutated afterwards.
type Config struct {
	Email    string
	Password string

	GroupID  string
	GroupURL string

	Templates []string

	MaxPostsToProcess    int
	MaxCommentsPerRun    int
	MinCommentDelay      time.Duration
	MaxCommentDelay      time.Duration
	ActionDelay          time.Duration
	MaxCommentsPerDay    int
	MaxCommentsPerHour   int
	MaxConsecutiveErrors int

	HTTPTimeout time.Duration
	SeenFile    string
	DatabaseURL string

	TelegramToken  string
	TelegramChatID string
	GeminiAPIKey   string
}

const defaultTemplate = "Thanks for sharing this with the group!"

// Load reads the env file (if present) and builds the config from the
// process environment. A missing env file is not an error; explicit
// environment variables always win because godotenv never overrides them.
func Load(envFile string) (Config, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	groupID := os.Getenv("GROUP_ID")
	cfg := Config{
		Email:    os.Getenv("FACEBOOK_EMAIL"),
		Password: os.Getenv("FACEBOOK_PASSWORD"),

		GroupID:  groupID,
		GroupURL: envStr("GROUP_URL", "https://mbasic.facebook.com/groups/"+groupID),

		Templates: envList("ADMIN_MESSAGES", defaultTemplate),

		MaxPostsToProcess:    envInt("MAX_POSTS_TO_PROCESS", 10),
		MaxCommentsPerRun:    envInt("MAX_COMMENTS_PER_RUN", 10),
		MinCommentDelay:      envSeconds("MIN_COMMENT_DELAY", 24),
		MaxCommentDelay:      envSeconds("MAX_COMMENT_DELAY", 36),
		ActionDelay:          envSeconds("DELAY_BETWEEN_ACTIONS", 3),
		MaxCommentsPerDay:    envInt("MAX_COMMENTS_PER_DAY", 50),
		MaxCommentsPerHour:   envInt("MAX_COMMENTS_PER_HOUR", 10),
		MaxConsecutiveErrors: envInt("MAX_CONSECUTIVE_ERRORS", 5),

		HTTPTimeout: envSeconds("HTTP_TIMEOUT", 30),
		SeenFile:    envStr("SEEN_FILE", "data/safety_data.json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHAT_ID"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
	}

	return cfg, cfg.Validate()
}

// Validate fails fast, before any external action is taken.
func (c Config) Validate() error {
	if c.Email == "" || c.Password == "" {
		return ErrMissingCredentials
	}
	if c.GroupID == "" {
		return ErrMissingGroup
	}
	if c.MinCommentDelay > c.MaxCommentDelay {
		return ErrBadDelayRange
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Second
}

func envList(key, fallback string) []string {
	raw := envStr(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{fallback}
	}
	return out
}
