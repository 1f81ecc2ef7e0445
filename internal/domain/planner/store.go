package planner

import (
	"context"
	"time"
)

// SessionStore persists sessions with a time-to-live.
type SessionStore interface {
	Get(ctx context.Context, id string) (Session, bool, error)
	Save(ctx context.Context, session Session, ttl time.Duration) error
}

// VersionRepository keeps the full history of a session's itineraries.
type VersionRepository interface {
	Append(ctx context.Context, v Version) error
	List(ctx context.Context, sessionID string) ([]Version, error)
}

// Archive stores immutable snapshots outside the primary stores.
type Archive interface {
	Put(ctx context.Context, snap Snapshot) error
}

// TokenIssuer hands out session-scoped access tokens.
type TokenIssuer interface {
	Issue(sessionID string) (string, error)
}
