package facebook

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
)

// The mobile HTML surface changes markup frequently, so every lookup walks an
// ordered fallback list and takes the first selector that matches anything.
var (
	postSelectors = []string{
		"#m_group_stories_container article",
		"div[role='article']",
		"article",
		"div[data-ft]",
	}

	authorSelectors = []string{
		"header h3 strong a",
		"h3 strong a",
		"h3 a",
		"header a",
	}

	contentSelectors = []string{
		"div[data-gt] p",
		"article p",
		"p",
	}
)

// htmlForm is a scraped <form>: its resolved action URL plus every input
// that must be echoed back on submit.
type htmlForm struct {
	Action string
	Fields url.Values
}

// parseForm extracts the first form matching selector. Hidden inputs carry
// the anti-CSRF tokens the site expects back verbatim.
func parseForm(doc *goquery.Document, selector string, base *url.URL) (htmlForm, bool) {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return htmlForm{}, false
	}

	form := htmlForm{Fields: url.Values{}}

	action := sel.AttrOr("action", "")
	if ref, err := url.Parse(action); err == nil {
		form.Action = base.ResolveReference(ref).String()
	}

	sel.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		form.Fields.Set(name, input.AttrOr("value", ""))
	})

	return form, true
}

// parseGroupPosts pulls the visible posts out of a group feed document, in
// document order, de-duplicated by identifier.
func parseGroupPosts(doc *goquery.Document, groupID string, base *url.URL) []domain.Post {
	var nodes *goquery.Selection
	for _, selector := range postSelectors {
		if nodes = doc.Find(selector); nodes.Length() > 0 {
			break
		}
	}
	if nodes == nil || nodes.Length() == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var posts []domain.Post

	nodes.Each(func(i int, sel *goquery.Selection) {
		post := extractPost(sel, i, groupID, base)
		if post.ID == "" || post.Content == "" {
			return
		}
		if _, dup := seen[post.ID]; dup {
			return
		}
		seen[post.ID] = struct{}{}
		posts = append(posts, post)
	})

	return posts
}

func extractPost(sel *goquery.Selection, index int, groupID string, base *url.URL) domain.Post {
	return domain.Post{
		ID:        postID(sel, index),
		GroupID:   groupID,
		Author:    firstText(sel, authorSelectors),
		Content:   postContent(sel),
		URL:       permalink(sel, base),
		Timestamp: sel.Find("abbr").First().Text(),
		ScrapedAt: time.Now(),
	}
}

// postID derives a stable identifier for the post: the platform-assigned id
// from the data-ft payload when present, an element id next, and a content
// hash as the last resort.
func postID(sel *goquery.Selection, index int) string {
	if raw, ok := sel.Attr("data-ft"); ok && raw != "" {
		var ft struct {
			TopLevelPostID string `json:"top_level_post_id"`
		}
		if err := json.Unmarshal([]byte(raw), &ft); err == nil && ft.TopLevelPostID != "" {
			return ft.TopLevelPostID
		}
		return "ft_" + hashText(raw)
	}

	if id, ok := sel.Attr("id"); ok && id != "" {
		return "el_" + id
	}

	text := strings.TrimSpace(sel.Text())
	if text == "" {
		return ""
	}
	if len(text) > 200 {
		text = text[:200]
	}
	return "hash_" + hashText(text)
}

func postContent(sel *goquery.Selection) string {
	for _, selector := range contentSelectors {
		nodes := sel.Find(selector)
		if nodes.Length() == 0 {
			continue
		}
		var parts []string
		nodes.Each(func(_ int, p *goquery.Selection) {
			if t := strings.TrimSpace(p.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}
	return ""
}

func firstText(sel *goquery.Selection, selectors []string) string {
	for _, selector := range selectors {
		if t := strings.TrimSpace(sel.Find(selector).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func permalink(sel *goquery.Selection, base *url.URL) string {
	var link string
	sel.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := a.AttrOr("href", "")
		if strings.Contains(href, "view=permalink") || strings.Contains(href, "/permalink/") {
			link = href
			return false
		}
		return true
	})
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

func hashText(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:8])
}
