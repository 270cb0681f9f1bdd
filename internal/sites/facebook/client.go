// Package facebook drives an authenticated session against the mobile HTML
// surface of the site: form login, group feed enumeration and comment
// submission, all over a cookie-jar resty client.
package facebook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/Wilfredoo/jdgrowthscraper/internal/core/domain"
	"github.com/Wilfredoo/jdgrowthscraper/internal/core/ports"
)

const (
	DefaultBaseURL = "https://mbasic.facebook.com"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

	loginPath         = "/login.php"
	loginFormSelector = "form[id=login_form], form[action*='login']"
	sessionCookie     = "c_user"

	commentFormSelector = "form[action*='comment'], form:has(textarea[name=comment_text])"
	commentField        = "comment_text"
)

var (
	ErrLoginFailed   = errors.New("login failed, check credentials")
	ErrNoLoginForm   = errors.New("could not find login form, unexpected page layout")
	ErrNoCommentForm = errors.New("could not find comment form")
)

type Options struct {
	BaseURL     string
	Email       string
	Password    string
	GroupID     string
	GroupURL    string
	Timeout     time.Duration
	ActionDelay time.Duration
}

type Client struct {
	BaseURL *url.URL
	Http    *resty.Client

	opts     Options
	loggedIn bool
}

func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy("facebook.com", baseURL.Hostname()))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &Client{
		BaseURL: baseURL,
		Http:    client,
		opts:    opts,
	}, nil
}

var _ ports.Site = (*Client)(nil)

func (c *Client) Name() string {
	return "facebook"
}

// Login authenticates once per run. There is no retry here: a failed login
// aborts the whole session.
func (c *Client) Login(ctx context.Context) error {
	res, err := c.Http.R().
		SetContext(ctx).
		Get(loginPath)
	if err != nil {
		return fmt.Errorf("fetch login page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}

	form, ok := parseForm(doc, loginFormSelector, c.BaseURL)
	if !ok {
		return ErrNoLoginForm
	}
	form.Fields.Set("email", c.opts.Email)
	form.Fields.Set("pass", c.opts.Password)

	c.pause(ctx)

	_, err = c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form.Fields).
		Post(form.Action)
	if err != nil {
		return fmt.Errorf("submit login form: %w", err)
	}

	if !c.hasSessionCookie() {
		return ErrLoginFailed
	}
	c.loggedIn = true
	return nil
}

// hasSessionCookie checks the jar for the user-id cookie the site sets only
// on successful authentication.
func (c *Client) hasSessionCookie() bool {
	jar := c.Http.GetClient().Jar
	if jar == nil {
		return false
	}
	for _, cookie := range jar.Cookies(c.BaseURL) {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			return true
		}
	}
	return false
}

// FetchGroupPosts enumerates the posts currently visible on the group page,
// in document order, at most limit of them.
func (c *Client) FetchGroupPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	if !c.loggedIn {
		return nil, ErrLoginFailed
	}

	res, err := c.Http.R().
		SetContext(ctx).
		Get(c.opts.GroupURL)
	if err != nil {
		return nil, fmt.Errorf("fetch group page: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("fetch group page: unexpected status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse group page: %w", err)
	}

	posts := parseGroupPosts(doc, c.opts.GroupID, c.BaseURL)
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// CreateComment opens the post page, scrapes the comment form and submits
// text through it. Failures here are per-post: the caller skips to the next
// candidate.
func (c *Client) CreateComment(ctx context.Context, postID string, text string) error {
	if !c.loggedIn {
		return ErrLoginFailed
	}

	postURL := c.postURL(postID)

	res, err := c.Http.R().
		SetContext(ctx).
		Get(postURL)
	if err != nil {
		return fmt.Errorf("fetch post page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return fmt.Errorf("parse post page: %w", err)
	}

	form, ok := parseForm(doc, commentFormSelector, c.BaseURL)
	if !ok {
		return ErrNoCommentForm
	}
	form.Fields.Set(commentField, text)

	c.pause(ctx)

	res, err = c.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(form.Fields).
		Post(form.Action)
	if err != nil {
		return fmt.Errorf("submit comment: %w", err)
	}
	if res.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("submit comment: unexpected status %d", res.StatusCode())
	}
	return nil
}

func (c *Client) postURL(postID string) string {
	return fmt.Sprintf("%s/groups/%s?view=permalink&id=%s",
		c.BaseURL, c.opts.GroupID, url.QueryEscape(postID))
}

// pause spaces out consecutive page interactions with a jittered delay so a
// run does not hammer the site between the rate-limited comments.
func (c *Client) pause(ctx context.Context) {
	if c.opts.ActionDelay <= 0 {
		return
	}
	jitter := time.Duration(rand.Int63n(int64(c.opts.ActionDelay))) - c.opts.ActionDelay/2
	select {
	case <-time.After(c.opts.ActionDelay + jitter/2):
	case <-ctx.Done():
	}
}
