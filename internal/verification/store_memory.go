package verification

import (
	"context"
	"sync"

	"verity/internal/evidence/extract"
	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

// MemorySessionStore is the in-process SessionStore for dev and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[id.SessionID]*Session)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	session.Version = 1
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, sessionID id.SessionID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return session.Clone(), nil
}

func (s *MemorySessionStore) Update(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.sessions[session.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != session.Version {
		return sentinel.ErrConflict
	}
	session.Version++
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *MemorySessionStore) FindOpen(_ context.Context, orderID id.OrderID, customerID id.CustomerID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, session := range s.sessions {
		if session.OrderID == orderID && session.CustomerID == customerID && !session.Status.IsTerminal() {
			return session.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemorySessionStore) FindByCode(_ context.Context, code string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if code == "" {
		return nil, sentinel.ErrNotFound
	}
	for _, session := range s.sessions {
		if session.Code == code {
			return session.Clone(), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *MemorySessionStore) FindLatestByOrder(_ context.Context, orderID id.OrderID) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *Session
	for _, session := range s.sessions {
		if session.OrderID != orderID {
			continue
		}
		if latest == nil || session.CreatedAt.After(latest.CreatedAt) {
			latest = session
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return latest.Clone(), nil
}

// MemoryDocumentStore is the in-process DocumentStore for dev and tests.
type MemoryDocumentStore struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*Document
	bySession map[id.SessionID][]id.DocumentID
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		documents: make(map[id.DocumentID]*Document),
		bySession: make(map[id.SessionID][]id.DocumentID),
	}
}

func (s *MemoryDocumentStore) Add(_ context.Context, document *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[document.ID]; exists {
		return sentinel.ErrConflict
	}
	copied := *document
	s.documents[document.ID] = &copied
	s.bySession[document.SessionID] = append(s.bySession[document.SessionID], document.ID)
	return nil
}

func (s *MemoryDocumentStore) Get(_ context.Context, documentID id.DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	document, ok := s.documents[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *document
	return &copied, nil
}

func (s *MemoryDocumentStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bySession[sessionID]
	documents := make([]Document, 0, len(ids))
	for _, documentID := range ids {
		documents = append(documents, *s.documents[documentID])
	}
	return documents, nil
}

func (s *MemoryDocumentStore) SetExtraction(_ context.Context, documentID id.DocumentID, result *extract.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	document, ok := s.documents[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	// First write wins; duplicate task runs are no-ops.
	if document.Extracted != nil {
		return nil
	}
	document.Extracted = result
	document.ExtractionFailed = false
	return nil
}

func (s *MemoryDocumentStore) MarkFailed(_ context.Context, documentID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	document, ok := s.documents[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if document.Extracted != nil {
		return nil
	}
	document.ExtractionFailed = true
	return nil
}
