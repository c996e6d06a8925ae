//go:build integration

package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"verity/internal/evidence/extract"
	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
	"verity/pkg/testutil/containers"
)

const sessionsDDL = `
CREATE TABLE IF NOT EXISTS verification_sessions (
    id                 UUID PRIMARY KEY,
    order_id           UUID NOT NULL,
    customer_id        UUID NOT NULL,
    verification_type  TEXT NOT NULL,
    status             TEXT NOT NULL,
    minimum_age        INT NOT NULL DEFAULT 0,
    document_ids       JSONB NOT NULL DEFAULT '[]',
    selfie_ref         TEXT NOT NULL DEFAULT '',
    biometric_score    DOUBLE PRECISION,
    biometric_verified BOOLEAN NOT NULL DEFAULT FALSE,
    result             JSONB,
    code               TEXT NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL,
    expires_at         TIMESTAMPTZ NOT NULL,
    version            BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_sessions_order_idx ON verification_sessions (order_id, customer_id, created_at);
CREATE INDEX IF NOT EXISTS verification_sessions_code_idx ON verification_sessions (code);
`

const documentsDDL = `
CREATE TABLE IF NOT EXISTS verification_documents (
    id                UUID PRIMARY KEY,
    session_id        UUID NOT NULL,
    document_type     TEXT NOT NULL,
    side              TEXT NOT NULL,
    storage_ref       TEXT NOT NULL,
    extracted         JSONB,
    extraction_failed BOOLEAN NOT NULL DEFAULT FALSE,
    uploaded_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS verification_documents_session_idx ON verification_documents (session_id, uploaded_at);
`

type PostgresStoreSuite struct {
	suite.Suite
	pg        *containers.PostgresContainer
	sessions  *PostgresSessionStore
	documents *PostgresDocumentStore
	ctx       context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.pg.Exec(s.T(), sessionsDDL, documentsDDL)
	s.sessions = NewPostgresSessionStore(s.pg.DB)
	s.documents = NewPostgresDocumentStore(s.pg.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.pg.Exec(s.T(), "TRUNCATE verification_sessions, verification_documents")
}

func (s *PostgresStoreSuite) newSession() *Session {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Session{
		ID:         id.NewSessionID(),
		OrderID:    id.NewOrderID(),
		CustomerID: id.NewCustomerID(),
		Type:       TypeBoth,
		Status:     StatusPending,
		MinimumAge: 21,
		Code:       NewCode(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * time.Minute),
	}
}

func (s *PostgresStoreSuite) TestSessionRoundTrip() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	stored, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(session.ID, stored.ID)
	s.Equal(TypeBoth, stored.Type)
	s.Equal(21, stored.MinimumAge)
	s.Equal(session.Code, stored.Code)
	s.EqualValues(1, stored.Version)
	s.True(session.ExpiresAt.Equal(stored.ExpiresAt))
}

func (s *PostgresStoreSuite) TestVersionConflict() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	a, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	b, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)

	a.Status = StatusInProgress
	a.Documents = append(a.Documents, id.NewDocumentID())
	s.Require().NoError(s.sessions.Update(s.ctx, a))
	s.EqualValues(2, a.Version)

	b.Status = StatusFailed
	s.Require().ErrorIs(s.sessions.Update(s.ctx, b), sentinel.ErrConflict)

	current, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Equal(StatusInProgress, current.Status)
	s.Len(current.Documents, 1)
}

func (s *PostgresStoreSuite) TestDuplicateCreate() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))
	s.Require().ErrorIs(s.sessions.Create(s.ctx, session), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindOpen() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	found, err := s.sessions.FindOpen(s.ctx, session.OrderID, session.CustomerID)
	s.Require().NoError(err)
	s.Equal(session.ID, found.ID)

	found.Status = StatusExpired
	s.Require().NoError(s.sessions.Update(s.ctx, found))

	_, err = s.sessions.FindOpen(s.ctx, session.OrderID, session.CustomerID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestFindByCodeAndLatest() {
	first := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, first))

	second := s.newSession()
	second.OrderID = first.OrderID
	second.CustomerID = first.CustomerID
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	s.Require().NoError(s.sessions.Create(s.ctx, second))

	byCode, err := s.sessions.FindByCode(s.ctx, second.Code)
	s.Require().NoError(err)
	s.Equal(second.ID, byCode.ID)

	latest, err := s.sessions.FindLatestByOrder(s.ctx, first.OrderID)
	s.Require().NoError(err)
	s.Equal(second.ID, latest.ID)
}

func (s *PostgresStoreSuite) TestResultPersists() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	score := 0.91
	session.Status = StatusCompleted
	session.BiometricScore = &score
	session.BiometricVerified = true
	session.Result = &Result{
		Verified:         true,
		AgeVerified:      true,
		IdentityVerified: true,
		VerifiedAt:       time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.sessions.Update(s.ctx, session))

	stored, err := s.sessions.Get(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Result)
	s.True(stored.Result.Verified)
	s.Require().NotNil(stored.BiometricScore)
	s.InDelta(0.91, *stored.BiometricScore, 1e-9)
}

func (s *PostgresStoreSuite) TestDocumentExtractionIdempotency() {
	session := s.newSession()
	s.Require().NoError(s.sessions.Create(s.ctx, session))

	doc := &Document{
		ID:         id.NewDocumentID(),
		SessionID:  session.ID,
		Type:       extract.DocDriversLicense,
		Side:       SideFront,
		StorageRef: "sessions/x/documents/y",
		UploadedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	s.Require().NoError(s.documents.Add(s.ctx, doc))

	first := &extract.Result{RawText: "first", Confidence: 0.9}
	second := &extract.Result{RawText: "second", Confidence: 0.2}
	s.Require().NoError(s.documents.SetExtraction(s.ctx, doc.ID, first))
	s.Require().NoError(s.documents.SetExtraction(s.ctx, doc.ID, second))
	s.Require().NoError(s.documents.MarkFailed(s.ctx, doc.ID))

	stored, err := s.documents.Get(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.Extracted)
	s.Equal("first", stored.Extracted.RawText)
	s.False(stored.ExtractionFailed)

	listed, err := s.documents.ListBySession(s.ctx, session.ID)
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
}
