package verification

import (
	"context"

	"verity/internal/evidence/extract"
	id "verity/pkg/domain"
)

// SessionStore persists sessions. Update is a compare-and-swap on the
// session version: a stale write returns sentinel.ErrConflict and the
// caller re-reads and retries, which serializes all mutations to one
// session without cross-session locking.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID id.SessionID) (*Session, error)
	Update(ctx context.Context, session *Session) error

	// FindOpen returns the non-terminal session for (order, customer), or
	// sentinel.ErrNotFound. Backs the initiate idempotency guarantee.
	FindOpen(ctx context.Context, orderID id.OrderID, customerID id.CustomerID) (*Session, error)

	// FindByCode resolves a session from its delivery verification code.
	FindByCode(ctx context.Context, code string) (*Session, error)

	// FindLatestByOrder returns the most recently created session for an
	// order regardless of status.
	FindLatestByOrder(ctx context.Context, orderID id.OrderID) (*Session, error)
}

// DocumentStore persists evidence rows. SetExtraction is idempotent per
// document: the first write wins and later writes (duplicate task runs)
// are no-ops, preserving document immutability.
type DocumentStore interface {
	Add(ctx context.Context, document *Document) error
	Get(ctx context.Context, documentID id.DocumentID) (*Document, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]Document, error)
	SetExtraction(ctx context.Context, documentID id.DocumentID, result *extract.Result) error
	MarkFailed(ctx context.Context, documentID id.DocumentID) error
}
