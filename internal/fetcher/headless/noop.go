package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/tiktok-hashtag-scraper/internal/hashtag"
)

// ErrOffline is returned by every fetch made through an offline session.
var ErrOffline = errors.New("browser offline")

// Offline implements hashtag.Browser without any browsing capability.
// Every fetch fails, so runs take the fallback paths.
type Offline struct{}

// NewOffline creates an offline browser.
func NewOffline() *Offline {
	return &Offline{}
}

// Open returns a session whose fetches always fail.
func (Offline) Open(_ context.Context) (hashtag.Session, error) {
	return offlineSession{}, nil
}

type offlineSession struct{}

func (offlineSession) Fetch(_ context.Context, _ string) (hashtag.Document, error) {
	return nil, ErrOffline
}

func (offlineSession) Close() error {
	return nil
}
