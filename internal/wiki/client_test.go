package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"github.com/Emojigit/FilterInappropriateCSD/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "Bot@Filter"
	testPassword = "s3cret"
)

func newLoggedInClient(t *testing.T, fw *testutil.FakeWiki, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(fw.APIURL(), opts...)
	require.NoError(t, err)
	require.NoError(t, c.Login(context.Background(), testUser, testPassword))
	return c
}

// fixtureServer answers every request with the named testdata file and
// records the query of the last request.
func fixtureServer(t *testing.T, fixture string, last *url.Values) *httptest.Server {
	t.Helper()
	body := testutil.LoadFixture(t, fixture)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if last != nil {
			*last = r.Form
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url")
	assert.Error(t, err)
}

func TestNewClient_HTTPClientGetsJar(t *testing.T) {
	h := &http.Client{Timeout: time.Second}
	c, err := NewClient("http://127.0.0.1:1/w/api.php", WithHTTPClient(h))
	require.NoError(t, err)
	assert.Same(t, h, c.httpClient)
	assert.NotNil(t, h.Jar, "login cookies need a jar")
}

func TestLogin(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)

	t.Run("success stores csrf token", func(t *testing.T) {
		c := newLoggedInClient(t, fw)
		assert.NotEmpty(t, c.csrfToken)
		assert.NotEqual(t, anonymousToken, c.csrfToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		c, err := NewClient(fw.APIURL())
		require.NoError(t, err)

		err = c.Login(context.Background(), testUser, "wrong")
		var loginErr *internal.LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, "Failed", loginErr.Result)
		assert.Contains(t, loginErr.Reason, "Incorrect")
		assert.Empty(t, c.csrfToken)
	})

	t.Run("missing credentials", func(t *testing.T) {
		c, err := NewClient(fw.APIURL())
		require.NoError(t, err)

		var loginErr *internal.LoginError
		assert.ErrorAs(t, c.Login(context.Background(), "", ""), &loginErr)
	})
}

func TestListCategoryMembers_Paging(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)
	fw.SetMembers("A", "B", "C", "D", "E")
	c := newLoggedInClient(t, fw)
	ctx := context.Background()

	q := internal.CategoryQuery{Category: "快速删除候选", Limit: 2, Descending: true}
	var titles []string
	for i := 0; i < 10; i++ {
		batch, err := c.ListCategoryMembers(ctx, q)
		require.NoError(t, err)
		titles = append(titles, batch.Titles...)
		if !batch.More {
			break
		}
		q.Continue = batch.Continue
	}

	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, titles)
	assert.Equal(t, []string{"", "2", "4"}, fw.ListCalls())
}

func TestListCategoryMembers_RequestParams(t *testing.T) {
	var got url.Values
	srv := fixtureServer(t, "categorymembers.json", &got)
	c, err := NewClient(srv.URL, WithUserAgent("csdfilter-test"))
	require.NoError(t, err)

	batch, err := c.ListCategoryMembers(context.Background(), internal.CategoryQuery{
		Category:   "快速删除候选",
		Namespace:  0,
		Limit:      20,
		Descending: true,
		Continue:   "page|prev|1",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"小明 (歌手)", "沙田第一城", "Example Page"}, batch.Titles)
	assert.True(t, batch.More)
	assert.Equal(t, "page|4f4a4d|8467623", batch.Continue)

	assert.Equal(t, "categorymembers", got.Get("list"))
	assert.Equal(t, "Category:快速删除候选", got.Get("cmtitle"))
	assert.Equal(t, "0", got.Get("cmnamespace"))
	assert.Equal(t, "20", got.Get("cmlimit"))
	assert.Equal(t, "descending", got.Get("cmdir"))
	assert.Equal(t, "page|prev|1", got.Get("cmcontinue"))
	assert.Equal(t, "json", got.Get("format"))
}

func TestListCategoryMembers_EmptyCategory(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)
	c := newLoggedInClient(t, fw)

	batch, err := c.ListCategoryMembers(context.Background(), internal.CategoryQuery{Category: "Empty", Limit: 20})
	require.NoError(t, err)
	assert.Empty(t, batch.Titles)
	assert.False(t, batch.More)
}

func TestFetchRevisions_Fixture(t *testing.T) {
	var got url.Values
	srv := fixtureServer(t, "revisions.json", &got)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)

	revs, err := c.FetchRevisions(context.Background(), []string{"example_page", "Gone Page"})
	require.NoError(t, err)

	require.Len(t, revs, 1)
	assert.Equal(t, internal.PageRevision{
		Title:   "Example Page",
		RevID:   87654321,
		Content: "{{delete|R7}}\n'''Example Page''' is an example.\n",
		User:    "Tagger",
	}, revs[0])

	assert.Equal(t, "example_page|Gone Page", got.Get("titles"))
	assert.Equal(t, "ids|content|user", got.Get("rvprop"))
	assert.Equal(t, "main", got.Get("rvslots"))
	assert.Equal(t, "2", got.Get("formatversion"))
}

func TestFetchRevisions_NoTitles(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1/w/api.php")
	require.NoError(t, err)

	revs, err := c.FetchRevisions(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, revs)
}

func TestSubmitEdit(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)
	rev := fw.AddPage("A", "{{delete|R7}}\nbody", "Tagger")
	c := newLoggedInClient(t, fw, WithEditOptions(EditOptions{Watchlist: "watch", WatchlistExpiry: "1 month"}))

	err := c.SubmitEdit(context.Background(), internal.EditJob{
		Title:      "A",
		NewContent: "{{vfd|x|date=2025/06/19}}\nbody",
		BaseRevID:  rev,
		Summary:    "summary",
	})
	require.NoError(t, err)

	edits := fw.Edits()
	require.Len(t, edits, 1)
	e := edits[0]
	assert.Equal(t, "{{vfd|x|date=2025/06/19}}\nbody", e.Text)
	assert.Equal(t, rev, e.BaseRevID)
	assert.Equal(t, "summary", e.Summary)
	assert.Equal(t, "1", e.Params["nocreate"])
	assert.Equal(t, "1", e.Params["notminor"])
	assert.Equal(t, "watch", e.Params["watchlist"])
	assert.Equal(t, "1 month", e.Params["watchlistexpiry"])
	assert.Equal(t, "user", e.Params["assert"])
}

func TestSubmitEdit_StaleBaseRevision(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)
	rev := fw.AddPage("A", "original", "Tagger")
	fw.AddPage("A", "changed by someone else", "Other")
	c := newLoggedInClient(t, fw)

	err := c.SubmitEdit(context.Background(), internal.EditJob{Title: "A", NewContent: "mine", BaseRevID: rev})
	require.Error(t, err)
	assert.True(t, internal.IsEditConflict(err))

	page, _ := fw.Page("A")
	assert.Equal(t, "changed by someone else", page.Content)
	assert.Empty(t, fw.Edits())
}

func TestSubmitEdit_MissingPageNotCreated(t *testing.T) {
	fw := testutil.NewFakeWiki(t, testUser, testPassword)
	c := newLoggedInClient(t, fw)

	err := c.SubmitEdit(context.Background(), internal.EditJob{Title: "Nope", NewContent: "x", BaseRevID: 1})
	var apiErr *internal.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "missingtitle", apiErr.Code)
	_, exists := fw.Page("Nope")
	assert.False(t, exists)
}

func TestSubmitEdit_NotLoggedIn(t *testing.T) {
	c, err := NewClient("http://127.0.0.1:1/w/api.php")
	require.NoError(t, err)
	assert.Error(t, c.SubmitEdit(context.Background(), internal.EditJob{Title: "A"}))
}

func TestSubmitEdit_ResultFailure(t *testing.T) {
	srv := fixtureServer(t, "edit_failure.json", nil)
	c, err := NewClient(srv.URL)
	require.NoError(t, err)
	c.csrfToken = "token"

	err = c.SubmitEdit(context.Background(), internal.EditJob{Title: "A", NewContent: "x", BaseRevID: 1})
	var apiErr *internal.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "failure", apiErr.Code)
	assert.Contains(t, apiErr.Info, "captcha")
}

func TestDo_HTTPStatusAndInvalidJSON(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			body:   "maintenance",
			check: func(t *testing.T, err error) {
				var apiErr *internal.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
			},
		},
		{
			name:   "html instead of json",
			status: http.StatusOK,
			body:   "<html>oops</html>",
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "invalid JSON")
			},
		},
		{
			name:   "api error object",
			status: http.StatusOK,
			body:   `{"error":{"code":"ratelimited","info":"You've exceeded your rate limit."}}`,
			check: func(t *testing.T, err error) {
				var apiErr *internal.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "ratelimited", apiErr.Code)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(srv.URL)
			require.NoError(t, err)
			_, err = c.ListCategoryMembers(context.Background(), internal.CategoryQuery{Category: "X", Limit: 1})
			tt.check(t, err)
		})
	}
}

func TestUserAgentHeader(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`{"query":{"categorymembers":[]}}`))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, WithUserAgent("csdfilter/1.0"))
	require.NoError(t, err)
	_, err = c.ListCategoryMembers(context.Background(), internal.CategoryQuery{Category: "X", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "csdfilter/1.0", ua)
}
