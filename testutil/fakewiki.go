package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	fakeLoginToken = `lt123+\`
	fakeCSRFToken  = `csrf456+\`
	sessionCookie  = "fakewiki_session"
)

// FakePage is a page stored by FakeWiki
type FakePage struct {
	RevID   int64
	Content string
	User    string
}

// FakeEdit is an edit FakeWiki accepted
type FakeEdit struct {
	Title     string
	Text      string
	BaseRevID int64
	Summary   string
	Params    map[string]string
}

// FakeWiki is an in-process MediaWiki action API with just enough behaviour
// for the bot: token login, categorymembers paging, revisions and edits
// guarded by baserevid.
type FakeWiki struct {
	Server   *httptest.Server
	Username string
	Password string

	mu        sync.Mutex
	members   []string
	pages     map[string]*FakePage
	edits     []FakeEdit
	listCalls []string
	conflicts map[string]int
	failures  map[string]string
	nextRev   int64
}

// NewFakeWiki starts a fake wiki accepting the given credentials. The server
// is closed when the test ends.
func NewFakeWiki(t *testing.T, username, password string) *FakeWiki {
	t.Helper()
	f := &FakeWiki{
		Username:  username,
		Password:  password,
		pages:     make(map[string]*FakePage),
		conflicts: make(map[string]int),
		failures:  make(map[string]string),
		nextRev:   1000,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// APIURL returns the api.php endpoint of the fake
func (f *FakeWiki) APIURL() string {
	return f.Server.URL + "/w/api.php"
}

// AddPage creates or replaces a page and returns its revision id
func (f *FakeWiki) AddPage(title, content, user string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextRev++
	f.pages[title] = &FakePage{RevID: f.nextRev, Content: content, User: user}
	return f.nextRev
}

// SetMembers sets the category members in listing order
func (f *FakeWiki) SetMembers(titles ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members = append([]string(nil), titles...)
}

// ConflictOn makes the next n edits of title fail with editconflict, each
// time bumping the page to a new revision as another editor would.
func (f *FakeWiki) ConflictOn(title string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conflicts[title] = n
}

// FailOn makes every edit of title fail with the given error code
func (f *FakeWiki) FailOn(title, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[title] = code
}

// Page returns a copy of the stored page
func (f *FakeWiki) Page(title string) (FakePage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[title]
	if !ok {
		return FakePage{}, false
	}
	return *p, true
}

// Edits returns the accepted edits in order
func (f *FakeWiki) Edits() []FakeEdit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeEdit(nil), f.edits...)
}

// ListCalls returns the cmcontinue value of every categorymembers request
func (f *FakeWiki) ListCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listCalls...)
}

func (f *FakeWiki) handle(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Form.Get("action") == "login":
		f.login(w, r)
	case r.Form.Get("action") == "edit":
		f.edit(w, r)
	case r.Form.Get("meta") == "tokens":
		f.tokens(w, r)
	case r.Form.Get("list") == "categorymembers":
		f.categoryMembers(w, r)
	case r.Form.Get("prop") == "revisions":
		f.revisions(w, r)
	default:
		writeJSON(w, apiError("badvalue", "Unrecognized request."))
	}
}

func (f *FakeWiki) loggedIn(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	return err == nil && c.Value == f.Username
}

func (f *FakeWiki) tokens(w http.ResponseWriter, r *http.Request) {
	if r.Form.Get("type") == "login" {
		writeJSON(w, map[string]any{
			"batchcomplete": "",
			"query":         map[string]any{"tokens": map[string]any{"logintoken": fakeLoginToken}},
		})
		return
	}
	token := `+\`
	if f.loggedIn(r) {
		token = fakeCSRFToken
	}
	writeJSON(w, map[string]any{
		"batchcomplete": "",
		"query":         map[string]any{"tokens": map[string]any{"csrftoken": token}},
	})
}

func (f *FakeWiki) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, apiError("mustbeposted", "The \"login\" module requires a POST request."))
		return
	}
	if r.Form.Get("lgtoken") != fakeLoginToken {
		writeJSON(w, map[string]any{"login": map[string]any{"result": "WrongToken"}})
		return
	}
	if r.Form.Get("lgname") != f.Username || r.Form.Get("lgpassword") != f.Password {
		writeJSON(w, map[string]any{"login": map[string]any{
			"result": "Failed",
			"reason": "Incorrect username or password entered. Please try again.",
		}})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: f.Username, Path: "/"})
	writeJSON(w, map[string]any{"login": map[string]any{
		"result":     "Success",
		"lgusername": strings.SplitN(f.Username, "@", 2)[0],
	}})
}

func (f *FakeWiki) categoryMembers(w http.ResponseWriter, r *http.Request) {
	cont := r.Form.Get("cmcontinue")
	f.listCalls = append(f.listCalls, cont)

	offset, _ := strconv.Atoi(cont)
	limit, err := strconv.Atoi(r.Form.Get("cmlimit"))
	if err != nil || limit < 1 {
		limit = 10
	}
	end := offset + limit
	if end > len(f.members) {
		end = len(f.members)
	}
	if offset > end {
		offset = end
	}

	members := make([]map[string]any, 0, end-offset)
	for _, title := range f.members[offset:end] {
		members = append(members, map[string]any{"ns": 0, "title": title})
	}
	resp := map[string]any{"query": map[string]any{"categorymembers": members}}
	if end < len(f.members) {
		resp["continue"] = map[string]any{"cmcontinue": strconv.Itoa(end), "continue": "-||"}
	} else {
		resp["batchcomplete"] = true
	}
	writeJSON(w, resp)
}

func (f *FakeWiki) revisions(w http.ResponseWriter, r *http.Request) {
	var pages []map[string]any
	for _, title := range strings.Split(r.Form.Get("titles"), "|") {
		p, ok := f.pages[title]
		if !ok {
			pages = append(pages, map[string]any{"ns": 0, "title": title, "missing": true})
			continue
		}
		pages = append(pages, map[string]any{
			"ns":    0,
			"title": title,
			"revisions": []map[string]any{{
				"revid": p.RevID,
				"user":  p.User,
				"slots": map[string]any{"main": map[string]any{
					"contentmodel":  "wikitext",
					"contentformat": "text/x-wiki",
					"content":       p.Content,
				}},
			}},
		})
	}
	writeJSON(w, map[string]any{"batchcomplete": true, "query": map[string]any{"pages": pages}})
}

func (f *FakeWiki) edit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, apiError("mustbeposted", "The \"edit\" module requires a POST request."))
		return
	}
	if !f.loggedIn(r) || r.Form.Get("token") != fakeCSRFToken {
		writeJSON(w, apiError("badtoken", "Invalid CSRF token."))
		return
	}
	title := r.Form.Get("title")
	if code, ok := f.failures[title]; ok {
		writeJSON(w, apiError(code, "Edit refused by test."))
		return
	}
	p, ok := f.pages[title]
	if !ok {
		writeJSON(w, apiError("missingtitle", "The page you specified doesn't exist."))
		return
	}
	if n := f.conflicts[title]; n > 0 {
		f.conflicts[title] = n - 1
		f.nextRev++
		p.RevID = f.nextRev
		p.User = "SomeoneElse"
		writeJSON(w, apiError("editconflict", "Edit conflict."))
		return
	}
	baseRevID, _ := strconv.ParseInt(r.Form.Get("baserevid"), 10, 64)
	if baseRevID != p.RevID {
		writeJSON(w, apiError("editconflict", "Edit conflict."))
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}
	oldRev := p.RevID
	f.nextRev++
	p.RevID = f.nextRev
	p.Content = r.Form.Get("text")
	p.User = f.Username
	f.edits = append(f.edits, FakeEdit{
		Title:     title,
		Text:      p.Content,
		BaseRevID: baseRevID,
		Summary:   r.Form.Get("summary"),
		Params:    params,
	})
	writeJSON(w, map[string]any{"edit": map[string]any{
		"result":   "Success",
		"title":    title,
		"oldrevid": oldRev,
		"newrevid": p.RevID,
	}})
}

func apiError(code, info string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "info": info}}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(v)
}
