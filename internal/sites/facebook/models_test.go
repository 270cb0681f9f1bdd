package facebook

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func mustBase(t *testing.T) *url.URL {
	t.Helper()
	base, err := url.Parse(DefaultBaseURL)
	require.NoError(t, err)
	return base
}

const groupFeedFixture = `
<html><body>
<div id="m_group_stories_container">
  <article data-ft='{"top_level_post_id":"111222333"}'>
    <header><h3><strong><a href="/user.one">User One</a></strong></h3></header>
    <p>Looking for work in the area, any leads appreciated</p>
    <abbr>2 hrs</abbr>
    <a href="/groups/9999?view=permalink&amp;id=111222333">Full Story</a>
  </article>
  <article data-ft='{"top_level_post_id":"444555666"}'>
    <header><h3><strong><a href="/user.two">User Two</a></strong></h3></header>
    <p>Sharing a useful resource with everyone</p>
    <a href="/groups/9999?view=permalink&amp;id=444555666">Full Story</a>
  </article>
  <article data-ft='{"top_level_post_id":"111222333"}'>
    <header><h3><strong><a href="/user.one">User One</a></strong></h3></header>
    <p>Looking for work in the area, any leads appreciated</p>
  </article>
  <article id="decoration-only"></article>
</div>
</body></html>`

func TestParseGroupPosts(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, groupFeedFixture)
	posts := parseGroupPosts(doc, "9999", mustBase(t))

	require.Len(t, posts, 2, "duplicate and empty articles must be dropped")

	require.Equal(t, "111222333", posts[0].ID)
	require.Equal(t, "User One", posts[0].Author)
	require.Equal(t, "Looking for work in the area, any leads appreciated", posts[0].Content)
	require.Equal(t, "9999", posts[0].GroupID)
	require.Equal(t, "2 hrs", posts[0].Timestamp)
	require.Equal(t, DefaultBaseURL+"/groups/9999?view=permalink&id=111222333", posts[0].URL)

	require.Equal(t, "444555666", posts[1].ID)
	require.Equal(t, "User Two", posts[1].Author)
}

func TestParseGroupPosts_OrderPreserved(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, groupFeedFixture)
	posts := parseGroupPosts(doc, "9999", mustBase(t))

	var ids []string
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	require.Equal(t, []string{"111222333", "444555666"}, ids)
}

func TestParseGroupPosts_FallbackIdentifiers(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<div role="article" id="story_77"><p>element id only</p></div>
	<div role="article"><p>no attributes at all, hash of content</p></div>
	</body></html>`

	posts := parseGroupPosts(mustDoc(t, html), "g", mustBase(t))
	require.Len(t, posts, 2)
	require.Equal(t, "el_story_77", posts[0].ID)
	require.True(t, strings.HasPrefix(posts[1].ID, "hash_"), "got %q", posts[1].ID)
}

func TestParseGroupPosts_EmptyFeed(t *testing.T) {
	t.Parallel()

	posts := parseGroupPosts(mustDoc(t, "<html><body><div>nothing here</div></body></html>"), "g", mustBase(t))
	require.Empty(t, posts)
}

func TestParseForm_Login(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<form id="login_form" action="/login/device-based/regular/login/?refsrc=deprecated" method="post">
	  <input type="hidden" name="lsd" value="AVq3x">
	  <input type="hidden" name="jazoest" value="2965">
	  <input type="text" name="email">
	  <input type="password" name="pass">
	  <input type="submit" name="login" value="Log In">
	</form>
	</body></html>`

	form, ok := parseForm(mustDoc(t, html), loginFormSelector, mustBase(t))
	require.True(t, ok)
	require.Equal(t, DefaultBaseURL+"/login/device-based/regular/login/?refsrc=deprecated", form.Action)
	require.Equal(t, "AVq3x", form.Fields.Get("lsd"))
	require.Equal(t, "2965", form.Fields.Get("jazoest"))

	// The credential inputs exist but carry no values until the client sets them.
	require.Contains(t, form.Fields, "email")
	require.Contains(t, form.Fields, "pass")
}

func TestParseForm_Comment(t *testing.T) {
	t.Parallel()

	html := `<html><body>
	<form action="/a/comment.php?fs=8" method="post">
	  <input type="hidden" name="fb_dtsg" value="token123">
	  <textarea name="comment_text"></textarea>
	  <input type="submit" value="Comment">
	</form>
	</body></html>`

	form, ok := parseForm(mustDoc(t, html), commentFormSelector, mustBase(t))
	require.True(t, ok)
	require.Equal(t, DefaultBaseURL+"/a/comment.php?fs=8", form.Action)
	require.Equal(t, "token123", form.Fields.Get("fb_dtsg"))
}

func TestParseForm_Missing(t *testing.T) {
	t.Parallel()

	_, ok := parseForm(mustDoc(t, "<html><body></body></html>"), loginFormSelector, mustBase(t))
	require.False(t, ok)
}
