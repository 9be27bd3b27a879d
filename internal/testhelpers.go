package internal

import (
	"time"
)

// Values used by CreateTestSettings
const (
	TestUsername = "Bot@Filter"
	TestDate     = "2025/06/19"
	TestLogPage  = "Wikipedia:頁面存廢討論/記錄/2025/06/19"
	TestMarker   = "<!-- FilterInappropriateCSD: batch insert point Bot@Filter -->"
)

// CreateTestSettings resolves the default configuration for a test user with
// a pinned date, no edit delay and a short append retry budget.
func CreateTestSettings() Settings {
	cfg := DefaultConfig()
	cfg.Username = TestUsername
	cfg.BotPassword = "secret"
	cfg.Log.Date = TestDate
	cfg.Edit.Delay = 0
	cfg.Append = RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}
	settings, err := cfg.Resolve(time.Now())
	if err != nil {
		panic(err)
	}
	return settings
}

// CreateTestRevision creates a test PageRevision last edited by "Tagger"
func CreateTestRevision(title string, revID int64, content string) PageRevision {
	return PageRevision{
		Title:   title,
		RevID:   revID,
		Content: content,
		User:    "Tagger",
	}
}

// CreateTestLogPage creates a log page revision holding the test marker
func CreateTestLogPage(revID int64) PageRevision {
	return PageRevision{
		Title:   TestLogPage,
		RevID:   revID,
		Content: "== 2025/06/19 ==\n" + TestMarker + "\n",
		User:    "Archiver",
	}
}
