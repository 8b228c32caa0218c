package logo

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a static document should be re-rendered.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// ContentSink persists artifacts under a caller-chosen name and returns where
// they landed. Implementations must tolerate concurrent writes to distinct names.
type ContentSink interface {
	Store(ctx context.Context, name string, contentType string, data []byte) (string, error)
}

// Publisher pushes finished results to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher digests stored artifact bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces random identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
