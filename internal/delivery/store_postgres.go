package delivery

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"verity/internal/compliance"
	id "verity/pkg/domain"
)

// PostgresStore persists handoff records in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE delivery_verifications (
//	    id          UUID PRIMARY KEY,
//	    delivery_id UUID NOT NULL,
//	    order_id    UUID NOT NULL,
//	    session_id  UUID NOT NULL,
//	    method      TEXT NOT NULL,
//	    passed      BOOLEAN NOT NULL,
//	    reason      TEXT NOT NULL DEFAULT '',
//	    compliance  JSONB,
//	    verified_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX delivery_verifications_delivery_idx ON delivery_verifications (delivery_id, verified_at);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, verification *Verification) error {
	var complianceJSON []byte
	if verification.Compliance != nil {
		raw, err := json.Marshal(verification.Compliance)
		if err != nil {
			return fmt.Errorf("marshal compliance check: %w", err)
		}
		complianceJSON = raw
	}

	query := `
		INSERT INTO delivery_verifications
			(id, delivery_id, order_id, session_id, method, passed, reason, compliance, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		verification.ID.String(),
		verification.DeliveryID.String(),
		verification.OrderID.String(),
		verification.SessionID.String(),
		string(verification.Method),
		verification.Passed,
		verification.Reason,
		complianceJSON,
		verification.VerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDelivery(ctx context.Context, deliveryID id.DeliveryID) ([]Verification, error) {
	query := `
		SELECT id, delivery_id, order_id, session_id, method, passed, reason, compliance, verified_at
		FROM delivery_verifications
		WHERE delivery_id = $1
		ORDER BY verified_at
	`
	rows, err := s.db.QueryContext(ctx, query, deliveryID.String())
	if err != nil {
		return nil, fmt.Errorf("query delivery verifications: %w", err)
	}
	defer rows.Close()

	var out []Verification
	for rows.Next() {
		var (
			record         Verification
			rawID          string
			rawDelivery    string
			rawOrder       string
			rawSession     string
			rawMethod      string
			complianceJSON []byte
		)
		if err := rows.Scan(&rawID, &rawDelivery, &rawOrder, &rawSession, &rawMethod,
			&record.Passed, &record.Reason, &complianceJSON, &record.VerifiedAt); err != nil {
			return nil, fmt.Errorf("scan delivery verification: %w", err)
		}
		if record.ID, err = id.ParseHandoffID(rawID); err != nil {
			return nil, err
		}
		if record.DeliveryID, err = id.ParseDeliveryID(rawDelivery); err != nil {
			return nil, err
		}
		if record.OrderID, err = id.ParseOrderID(rawOrder); err != nil {
			return nil, err
		}
		if record.SessionID, err = id.ParseSessionID(rawSession); err != nil {
			return nil, err
		}
		record.Method = Method(rawMethod)
		if len(complianceJSON) > 0 {
			var check compliance.Check
			if err := json.Unmarshal(complianceJSON, &check); err != nil {
				return nil, fmt.Errorf("unmarshal compliance check: %w", err)
			}
			record.Compliance = &check
		}
		out = append(out, record)
	}
	return out, rows.Err()
}
