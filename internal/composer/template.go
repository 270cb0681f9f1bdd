// Package composer turns a post into the comment text to submit.
package composer

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

var ErrNoTemplates = errors.New("no comment templates configured")

// TemplateComposer picks one of the configured templates at random and
// applies simple placeholder substitution: {author} and {group}.
type TemplateComposer struct {
	Templates []string
}

func NewTemplateComposer(templates []string) (*TemplateComposer, error) {
	if len(templates) == 0 {
		return nil, ErrNoTemplates
	}
	return &TemplateComposer{Templates: templates}, nil
}

var _ ports.Composer = (*TemplateComposer)(nil)

func (c *TemplateComposer) Compose(_ context.Context, post domain.Post) (string, error) {
	tmpl := lo.Sample(c.Templates)
	return expand(tmpl, post), nil
}

func expand(tmpl string, post domain.Post) string {
	r := strings.NewReplacer(
		"{author}", post.Author,
		"{group}", post.GroupID,
	)
	return r.Replace(tmpl)
}
