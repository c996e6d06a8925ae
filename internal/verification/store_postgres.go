package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"verity/internal/evidence/extract"
	"verity/internal/evidence/storage"
	id "verity/pkg/domain"
	"verity/pkg/platform/sentinel"
)

// PostgresSessionStore persists sessions in PostgreSQL. Updates
// compare-and-swap on the version column.
//
// Schema:
//
//	CREATE TABLE verification_sessions (
//	    id                 UUID PRIMARY KEY,
//	    order_id           UUID NOT NULL,
//	    customer_id        UUID NOT NULL,
//	    verification_type  TEXT NOT NULL,
//	    status             TEXT NOT NULL,
//	    minimum_age        INT NOT NULL DEFAULT 0,
//	    document_ids       JSONB NOT NULL DEFAULT '[]',
//	    selfie_ref         TEXT NOT NULL DEFAULT '',
//	    biometric_score    DOUBLE PRECISION,
//	    biometric_verified BOOLEAN NOT NULL DEFAULT FALSE,
//	    result             JSONB,
//	    code               TEXT NOT NULL,
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    expires_at         TIMESTAMPTZ NOT NULL,
//	    version            BIGINT NOT NULL
//	);
//	CREATE INDEX verification_sessions_order_idx ON verification_sessions (order_id, customer_id, created_at);
//	CREATE INDEX verification_sessions_code_idx ON verification_sessions (code);
type PostgresSessionStore struct {
	db *sql.DB
}

func NewPostgresSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

const sessionColumns = `id, order_id, customer_id, verification_type, status, minimum_age,
	document_ids, selfie_ref, biometric_score, biometric_verified, result, code,
	created_at, expires_at, version`

func (s *PostgresSessionStore) Create(ctx context.Context, session *Session) error {
	session.Version = 1
	documentIDs, err := marshalDocumentIDs(session.Documents)
	if err != nil {
		return err
	}
	result, err := marshalResult(session.Result)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		session.ID.String(),
		session.OrderID.String(),
		session.CustomerID.String(),
		string(session.Type),
		string(session.Status),
		session.MinimumAge,
		documentIDs,
		string(session.SelfieRef),
		session.BiometricScore,
		session.BiometricVerified,
		result,
		session.Code,
		session.CreatedAt,
		session.ExpiresAt,
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresSessionStore) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, sessionID.String()))
}

func (s *PostgresSessionStore) Update(ctx context.Context, session *Session) error {
	documentIDs, err := marshalDocumentIDs(session.Documents)
	if err != nil {
		return err
	}
	result, err := marshalResult(session.Result)
	if err != nil {
		return err
	}

	query := `
		UPDATE verification_sessions
		SET status = $1, minimum_age = $2, document_ids = $3, selfie_ref = $4,
			biometric_score = $5, biometric_verified = $6, result = $7,
			expires_at = $8, version = version + 1
		WHERE id = $9 AND version = $10
	`
	res, err := s.db.ExecContext(ctx, query,
		string(session.Status),
		session.MinimumAge,
		documentIDs,
		string(session.SelfieRef),
		session.BiometricScore,
		session.BiometricVerified,
		result,
		session.ExpiresAt,
		session.ID.String(),
		session.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 0 {
		// Either the row is gone or the version moved underneath us.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_sessions WHERE id = $1)`,
			session.ID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	session.Version++
	return nil
}

func (s *PostgresSessionStore) FindOpen(ctx context.Context, orderID id.OrderID, customerID id.CustomerID) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE order_id = $1 AND customer_id = $2 AND status NOT IN ('completed', 'failed', 'expired')
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, orderID.String(), customerID.String()))
}

func (s *PostgresSessionStore) FindByCode(ctx context.Context, code string) (*Session, error) {
	if code == "" {
		return nil, sentinel.ErrNotFound
	}
	query := `SELECT ` + sessionColumns + ` FROM verification_sessions WHERE code = $1 LIMIT 1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, code))
}

func (s *PostgresSessionStore) FindLatestByOrder(ctx context.Context, orderID id.OrderID) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM verification_sessions
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	return s.scanOne(s.db.QueryRowContext(ctx, query, orderID.String()))
}

func (s *PostgresSessionStore) scanOne(row *sql.Row) (*Session, error) {
	var (
		session                           Session
		sessionID, orderID, customerID    string
		verificationType, status, selfRef string
		documentIDs, result               []byte
		score                             sql.NullFloat64
	)
	err := row.Scan(&sessionID, &orderID, &customerID, &verificationType, &status,
		&session.MinimumAge, &documentIDs, &selfRef, &score, &session.BiometricVerified,
		&result, &session.Code, &session.CreatedAt, &session.ExpiresAt, &session.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if parsed, err := id.ParseSessionID(sessionID); err == nil {
		session.ID = parsed
	}
	if parsed, err := id.ParseOrderID(orderID); err == nil {
		session.OrderID = parsed
	}
	if parsed, err := id.ParseCustomerID(customerID); err == nil {
		session.CustomerID = parsed
	}
	session.Type = Type(verificationType)
	session.Status = Status(status)
	session.SelfieRef = storage.Ref(selfRef)
	if score.Valid {
		session.BiometricScore = &score.Float64
	}
	if len(documentIDs) > 0 {
		var raw []string
		if err := json.Unmarshal(documentIDs, &raw); err != nil {
			return nil, fmt.Errorf("unmarshal document ids: %w", err)
		}
		for _, documentID := range raw {
			if parsed, err := id.ParseDocumentID(documentID); err == nil {
				session.Documents = append(session.Documents, parsed)
			}
		}
	}
	if len(result) > 0 {
		var r Result
		if err := json.Unmarshal(result, &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		session.Result = &r
	}
	return &session, nil
}

func marshalDocumentIDs(ids []id.DocumentID) ([]byte, error) {
	raw := make([]string, 0, len(ids))
	for _, documentID := range ids {
		raw = append(raw, documentID.String())
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal document ids: %w", err)
	}
	return encoded, nil
}

func marshalResult(result *Result) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return encoded, nil
}

// PostgresDocumentStore persists evidence rows in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE verification_documents (
//	    id                UUID PRIMARY KEY,
//	    session_id        UUID NOT NULL,
//	    document_type     TEXT NOT NULL,
//	    side              TEXT NOT NULL,
//	    storage_ref       TEXT NOT NULL,
//	    extracted         JSONB,
//	    extraction_failed BOOLEAN NOT NULL DEFAULT FALSE,
//	    uploaded_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX verification_documents_session_idx ON verification_documents (session_id, uploaded_at);
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) Add(ctx context.Context, document *Document) error {
	query := `
		INSERT INTO verification_documents
			(id, session_id, document_type, side, storage_ref, extracted, extraction_failed, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, NULL, FALSE, $6)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		document.ID.String(),
		document.SessionID.String(),
		string(document.Type),
		string(document.Side),
		string(document.StorageRef),
		document.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresDocumentStore) Get(ctx context.Context, documentID id.DocumentID) (*Document, error) {
	query := `
		SELECT id, session_id, document_type, side, storage_ref, extracted, extraction_failed, uploaded_at
		FROM verification_documents
		WHERE id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, documentID.String())
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get document: %w", err)
		}
		return nil, sentinel.ErrNotFound
	}
	return scanDocument(rows)
}

func (s *PostgresDocumentStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]Document, error) {
	query := `
		SELECT id, session_id, document_type, side, storage_ref, extracted, extraction_failed, uploaded_at
		FROM verification_documents
		WHERE session_id = $1
		ORDER BY uploaded_at
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		documents = append(documents, *document)
	}
	return documents, rows.Err()
}

// SetExtraction writes extracted fields exactly once per document; the
// WHERE clause makes duplicate task executions no-ops.
func (s *PostgresDocumentStore) SetExtraction(ctx context.Context, documentID id.DocumentID, result *extract.Result) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal extraction: %w", err)
	}
	query := `
		UPDATE verification_documents
		SET extracted = $1, extraction_failed = FALSE
		WHERE id = $2 AND extracted IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, encoded, documentID.String())
	if err != nil {
		return fmt.Errorf("set extraction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM verification_documents WHERE id = $1)`,
			documentID.String()).Scan(&exists); err != nil {
			return fmt.Errorf("set extraction: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

func (s *PostgresDocumentStore) MarkFailed(ctx context.Context, documentID id.DocumentID) error {
	query := `
		UPDATE verification_documents
		SET extraction_failed = TRUE
		WHERE id = $1 AND extracted IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, documentID.String()); err != nil {
		return fmt.Errorf("mark extraction failed: %w", err)
	}
	return nil
}

func scanDocument(rows *sql.Rows) (*Document, error) {
	var (
		document            Document
		documentID, session string
		docType, side, ref  string
		extracted           []byte
	)
	if err := rows.Scan(&documentID, &session, &docType, &side, &ref,
		&extracted, &document.ExtractionFailed, &document.UploadedAt); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if parsed, err := id.ParseDocumentID(documentID); err == nil {
		document.ID = parsed
	}
	if parsed, err := id.ParseSessionID(session); err == nil {
		document.SessionID = parsed
	}
	document.Type = extract.DocumentType(docType)
	document.Side = Side(side)
	document.StorageRef = storage.Ref(ref)
	if len(extracted) > 0 {
		var result extract.Result
		if err := json.Unmarshal(extracted, &result); err != nil {
			return nil, fmt.Errorf("unmarshal extraction: %w", err)
		}
		document.Extracted = &result
	}
	return &document, nil
}
