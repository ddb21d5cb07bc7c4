package hashtag

import (
	"context"
	"time"
)

// Queryable is anything that can be searched with a CSS selector.
type Queryable interface {
	Query(selector string) []Element
}

// Element is a single DOM node returned by a query.
type Element interface {
	Queryable
	Text() string
}

// Document is a fetched page.
type Document interface {
	Queryable
}

// PageFetcher loads a URL and returns its queryable DOM.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (Document, error)
}

// Session is a PageFetcher owning a browsing resource that must be released.
type Session interface {
	PageFetcher
	Close() error
}

// Browser opens one Session per run.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Sink receives the final record set of a run.
type Sink interface {
	Append(ctx context.Context, run Run) error
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
