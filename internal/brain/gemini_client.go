package brain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

const systemPrompt = `You write short, warm comments posted by the admin of a
community group. Rules:
1. Match the language of the post you are replying to.
2. One or two sentences, no hashtags, no emoji walls, no links.
3. Sound like a person, not a bot: react to something concrete in the post.
4. Never promise anything on behalf of the group and never ask for
   personal information.`

type modelConfig struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiComposer generates a comment from the post content. It keeps its own
// per-model request budget and falls through to the next model when a quota
// is exhausted.
type GeminiComposer struct {
	Client *genai.Client
	Models []modelConfig

	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	mu           sync.Mutex
}

func NewGeminiComposer(ctx context.Context, apiKey string) (*GeminiComposer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}

	return &GeminiComposer{
		Client: client,
		Models: []modelConfig{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ ports.Composer = (*GeminiComposer)(nil)

func (b *GeminiComposer) Compose(ctx context.Context, post domain.Post) (string, error) {
	prompt := fmt.Sprintf(`%s

Task: write one comment for this group post.
[author] %s
[post] %s

Output the comment text only, no quotes, no JSON.`, systemPrompt, post.Author, post.Content)

	text, err := b.tryGenerateWithFallback(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (b *GeminiComposer) tryGenerateWithFallback(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for _, cfg := range b.Models {
		if !b.canUseModel(cfg) {
			continue
		}

		result, err := b.Client.Models.GenerateContent(ctx, cfg.Name, genai.Text(prompt), nil)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") ||
				strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}

		if result != nil && len(result.Candidates) > 0 && len(result.Candidates[0].Content.Parts) > 0 {
			b.recordUsage(cfg)
			return result.Candidates[0].Content.Parts[0].Text, nil
		}
	}

	return "", fmt.Errorf("all models failed: %v", lastErr)
}

func (b *GeminiComposer) canUseModel(cfg modelConfig) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if b.dailyCount[cfg.Name] >= cfg.RPD {
		return false
	}
	if b.minuteCount[cfg.Name] >= cfg.RPM {
		return false
	}
	return true
}

func (b *GeminiComposer) recordUsage(cfg modelConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[cfg.Name]++
	b.minuteCount[cfg.Name]++
}
