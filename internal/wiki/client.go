// Package wiki is a small client for the MediaWiki action API covering the
// calls the bot needs: token login, category listing, revision content and
// edits guarded by a base revision id.
package wiki

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"github.com/tidwall/gjson"
)

// anonymousToken is the CSRF token MediaWiki hands to logged-out sessions
const anonymousToken = `+\`

// EditOptions are sent with every edit
type EditOptions struct {
	Watchlist       string // "watch", "unwatch", "preferences", "nochange"
	WatchlistExpiry string // e.g. "1 month"; empty leaves it unset
}

// Client holds the authenticated session: cookies in the jar and the CSRF
// token obtained after login.
type Client struct {
	apiURL     string
	userAgent  string
	httpClient *http.Client
	edit       EditOptions
	csrfToken  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient uses h for requests. A cookie jar is added when h has none.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithEditOptions sets the watchlist parameters sent with edits
func WithEditOptions(o EditOptions) Option {
	return func(c *Client) { c.edit = o }
}

// NewClient creates a client for the api.php endpoint at apiURL
func NewClient(apiURL string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(apiURL); err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", apiURL, err)
	}
	c := &Client{
		apiURL:     apiURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// Login performs the login-token flow and then fetches the CSRF token used
// for edits.
func (c *Client) Login(ctx context.Context, username, password string) error {
	res, err := c.get(ctx, "query", url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
		"type":   {"login"},
	})
	if err != nil {
		return fmt.Errorf("fetch login token: %w", err)
	}
	loginToken := res.Get("query.tokens.logintoken").String()
	if loginToken == "" {
		return errors.New("fetch login token: no logintoken in response")
	}

	res, err = c.post(ctx, "login", url.Values{
		"action":     {"login"},
		"lgname":     {username},
		"lgpassword": {password},
		"lgtoken":    {loginToken},
	})
	if err != nil {
		return err
	}
	if result := res.Get("login.result").String(); result != "Success" {
		return &internal.LoginError{
			User:   username,
			Result: result,
			Reason: res.Get("login.reason").String(),
		}
	}

	token, err := c.fetchCSRFToken(ctx)
	if err != nil {
		return err
	}
	c.csrfToken = token
	return nil
}

func (c *Client) fetchCSRFToken(ctx context.Context) (string, error) {
	res, err := c.get(ctx, "query", url.Values{
		"action": {"query"},
		"meta":   {"tokens"},
	})
	if err != nil {
		return "", fmt.Errorf("fetch csrf token: %w", err)
	}
	token := res.Get("query.tokens.csrftoken").String()
	if token == "" || token == anonymousToken {
		return "", errors.New("fetch csrf token: session is not logged in")
	}
	return token, nil
}

// ListCategoryMembers returns one page of category member titles
func (c *Client) ListCategoryMembers(ctx context.Context, q internal.CategoryQuery) (internal.CategoryBatch, error) {
	dir := "ascending"
	if q.Descending {
		dir = "descending"
	}
	params := url.Values{
		"action":      {"query"},
		"list":        {"categorymembers"},
		"cmtitle":     {"Category:" + q.Category},
		"cmnamespace": {strconv.Itoa(q.Namespace)},
		"cmlimit":     {strconv.Itoa(q.Limit)},
		"cmdir":       {dir},
	}
	if q.Continue != "" {
		params.Set("cmcontinue", q.Continue)
	}

	res, err := c.get(ctx, "query", params)
	if err != nil {
		return internal.CategoryBatch{}, err
	}

	batch := internal.CategoryBatch{Titles: []string{}}
	for _, title := range res.Get("query.categorymembers.#.title").Array() {
		batch.Titles = append(batch.Titles, title.String())
	}
	if next := res.Get("continue.cmcontinue"); next.Exists() && next.String() != "" {
		batch.Continue = next.String()
		batch.More = true
	}
	return batch, nil
}

// FetchRevisions returns the latest revision of each title in one request.
// Titles that do not exist are left out.
func (c *Client) FetchRevisions(ctx context.Context, titles []string) ([]internal.PageRevision, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	res, err := c.get(ctx, "query", url.Values{
		"action":        {"query"},
		"prop":          {"revisions"},
		"titles":        {strings.Join(titles, "|")},
		"rvprop":        {"ids|content|user"},
		"rvslots":       {"main"},
		"formatversion": {"2"},
	})
	if err != nil {
		return nil, err
	}

	var revs []internal.PageRevision
	for _, page := range res.Get("query.pages").Array() {
		title := page.Get("title").String()
		if page.Get("missing").Bool() || page.Get("invalid").Bool() {
			internal.LogWarn("Skipping %s: page is missing", title)
			continue
		}
		rev := page.Get("revisions.0")
		if !rev.Exists() {
			internal.LogWarn("Skipping %s: no revisions returned", title)
			continue
		}
		revs = append(revs, internal.PageRevision{
			Title:   title,
			RevID:   rev.Get("revid").Int(),
			Content: rev.Get("slots.main.content").String(),
			User:    rev.Get("user").String(),
		})
	}
	return revs, nil
}

// SubmitEdit replaces the page text. The edit carries job.BaseRevID so the
// server rejects it if the page changed since it was read, and nocreate so a
// deleted page is not recreated.
func (c *Client) SubmitEdit(ctx context.Context, job internal.EditJob) error {
	if c.csrfToken == "" {
		return errors.New("submit edit: not logged in")
	}
	form := url.Values{
		"action":    {"edit"},
		"assert":    {"user"},
		"title":     {job.Title},
		"text":      {job.NewContent},
		"summary":   {job.Summary},
		"notminor":  {"1"},
		"baserevid": {strconv.FormatInt(job.BaseRevID, 10)},
		"nocreate":  {"1"},
		"token":     {c.csrfToken},
	}
	if c.edit.Watchlist != "" {
		form.Set("watchlist", c.edit.Watchlist)
	}
	if c.edit.WatchlistExpiry != "" {
		form.Set("watchlistexpiry", c.edit.WatchlistExpiry)
	}

	res, err := c.post(ctx, "edit", form)
	if err != nil {
		return err
	}
	if result := res.Get("edit.result").String(); result != "Success" {
		return &internal.APIError{
			Action: "edit",
			Code:   strings.ToLower(result),
			Info:   res.Get("edit").Raw,
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, action string, params url.Values) (gjson.Result, error) {
	params.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?"+params.Encode(), nil)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, action)
}

func (c *Client) post(ctx context.Context, action string, form url.Values) (gjson.Result, error) {
	form.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, action)
}

func (c *Client) do(req *http.Request, action string) (gjson.Result, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s request failed: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s response: %w", action, err)
	}
	internal.LogDebug("%s response: %s", action, body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, &internal.APIError{Action: action, Status: resp.StatusCode}
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("failed to parse %s response: invalid JSON", action)
	}

	res := gjson.ParseBytes(body)
	if apiErr := res.Get("error"); apiErr.Exists() {
		return res, &internal.APIError{
			Action: action,
			Code:   apiErr.Get("code").String(),
			Info:   apiErr.Get("info").String(),
			Status: resp.StatusCode,
		}
	}
	return res, nil
}
