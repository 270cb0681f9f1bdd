package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body>
<form id="login_form" action="/login/device-based/regular/login/" method="post">
  <input type="hidden" name="lsd" value="AVq3x">
  <input type="hidden" name="jazoest" value="2965">
  <input type="text" name="email">
  <input type="password" name="pass">
</form>
</body></html>`

const postPage = `<html><body>
<form action="/a/comment.php?fs=8" method="post">
  <input type="hidden" name="fb_dtsg" value="token123">
  <textarea name="comment_text"></textarea>
</form>
</body></html>`

// fakeServer serves just enough of the mobile HTML surface to exercise the
// login and comment flows end to end.
type fakeServer struct {
	*httptest.Server

	acceptPassword string
	loginPosts     int
	commentPosts   map[string]string // fb_dtsg observed -> comment text
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{
		acceptPassword: "hunter2",
		commentPosts:   map[string]string{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login.php", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(loginPage))
	})
	mux.HandleFunc("POST /login/device-based/regular/login/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fs.loginPosts++
		require.Equal(t, "AVq3x", r.PostFormValue("lsd"), "hidden inputs must be echoed back")

		if r.PostFormValue("pass") == fs.acceptPassword {
			http.SetCookie(w, &http.Cookie{Name: "c_user", Value: "100001", Path: "/"})
		}
		w.Write([]byte("<html><body>home</body></html>"))
	})
	mux.HandleFunc("GET /groups/9999", func(w http.ResponseWriter, r *http.Request) {
		// Same path serves the feed and, with view=permalink, a single post.
		if r.URL.Query().Get("view") == "permalink" {
			w.Write([]byte(postPage))
			return
		}
		w.Write([]byte(groupFeedFixture))
	})
	mux.HandleFunc("POST /a/comment.php", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		fs.commentPosts[r.PostFormValue("fb_dtsg")] = r.PostFormValue("comment_text")
		w.Write([]byte("ok"))
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func newTestClient(t *testing.T, srv *fakeServer, password string) *Client {
	t.Helper()

	c, err := NewClient(Options{
		BaseURL:  srv.URL,
		Email:    "admin@example.com",
		Password: password,
		GroupID:  "9999",
		GroupURL: srv.URL + "/groups/9999",
	})
	require.NoError(t, err)
	return c
}

func TestClient_LoginSuccess(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv, "hunter2")

	require.NoError(t, c.Login(context.Background()))
	require.Equal(t, 1, srv.loginPosts)
}

func TestClient_LoginBadCredentials(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv, "wrong")

	err := c.Login(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestClient_FetchRequiresLogin(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv, "hunter2")

	_, err := c.FetchGroupPosts(context.Background(), 10)
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestClient_FetchGroupPosts(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv, "hunter2")
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))

	posts, err := c.FetchGroupPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, "111222333", posts[0].ID)

	posts, err = c.FetchGroupPosts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, posts, 1, "limit caps the enumeration")
}

func TestClient_CreateComment(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(t)
	c := newTestClient(t, srv, "hunter2")
	ctx := context.Background()

	require.NoError(t, c.Login(ctx))
	require.NoError(t, c.CreateComment(ctx, "111222333", "welcome to the group"))

	require.Equal(t, "welcome to the group", srv.commentPosts["token123"],
		"comment text is submitted through the scraped form with its tokens")
}
