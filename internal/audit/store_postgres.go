package audit

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	id "verity/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE audit_events (
//	    id           BIGSERIAL PRIMARY KEY,
//	    ts           TIMESTAMPTZ NOT NULL,
//	    category     TEXT NOT NULL,
//	    session_id   UUID,
//	    order_id     UUID,
//	    customer_id  UUID,
//	    jurisdiction TEXT,
//	    action       TEXT NOT NULL,
//	    decision     TEXT,
//	    reason       TEXT,
//	    request_id   TEXT
//	);
//	CREATE INDEX audit_events_order_idx ON audit_events (order_id, ts);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events
			(ts, category, session_id, order_id, customer_id, jurisdiction, action, decision, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.Timestamp,
		string(event.Action.Category()),
		nullableID(event.SessionID.String(), event.SessionID.IsNil()),
		nullableID(event.OrderID.String(), event.OrderID.IsNil()),
		nullableID(event.CustomerID.String(), event.CustomerID.IsNil()),
		string(event.Jurisdiction),
		string(event.Action),
		event.Decision,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByOrder(ctx context.Context, orderID id.OrderID) ([]Event, error) {
	query := `
		SELECT ts, session_id, order_id, customer_id, jurisdiction, action, decision, reason, request_id
		FROM audit_events
		WHERE order_id = $1
		ORDER BY ts
	`
	rows, err := s.db.QueryContext(ctx, query, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                               Event
			sessionID, ordID, custID, juris sql.NullString
			action, decision, reason, reqID sql.NullString
		)
		if err := rows.Scan(&e.Timestamp, &sessionID, &ordID, &custID, &juris, &action, &decision, &reason, &reqID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if sessionID.Valid {
			if parsed, err := id.ParseSessionID(sessionID.String); err == nil {
				e.SessionID = parsed
			}
		}
		if ordID.Valid {
			if parsed, err := id.ParseOrderID(ordID.String); err == nil {
				e.OrderID = parsed
			}
		}
		if custID.Valid {
			if parsed, err := id.ParseCustomerID(custID.String); err == nil {
				e.CustomerID = parsed
			}
		}
		e.Jurisdiction = id.Jurisdiction(juris.String)
		e.Action = Action(action.String)
		e.Decision = decision.String
		e.Reason = reason.String
		e.RequestID = reqID.String
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullableID(s string, isNil bool) any {
	if isNil {
		return nil
	}
	return s
}
