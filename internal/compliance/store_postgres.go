package compliance

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	id "verity/pkg/domain"
)

// PostgresCheckLog persists compliance verdicts in PostgreSQL.
//
// Schema:
//
//	CREATE TABLE compliance_checks (
//	    id            UUID PRIMARY KEY,
//	    order_id      UUID NOT NULL,
//	    jurisdiction  TEXT NOT NULL,
//	    passed        BOOLEAN NOT NULL,
//	    product_types JSONB NOT NULL,
//	    issues        JSONB NOT NULL,
//	    requirements  JSONB NOT NULL,
//	    checked_at    TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX compliance_checks_order_idx ON compliance_checks (order_id, checked_at);
type PostgresCheckLog struct {
	db *sql.DB
}

func NewPostgresCheckLog(db *sql.DB) *PostgresCheckLog {
	return &PostgresCheckLog{db: db}
}

func (l *PostgresCheckLog) Append(ctx context.Context, check Check) error {
	productTypes, err := json.Marshal(check.ProductTypes)
	if err != nil {
		return fmt.Errorf("marshal product types: %w", err)
	}
	issues, err := json.Marshal(check.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}
	requirements, err := json.Marshal(check.Requirements)
	if err != nil {
		return fmt.Errorf("marshal requirements: %w", err)
	}

	query := `
		INSERT INTO compliance_checks
			(id, order_id, jurisdiction, passed, product_types, issues, requirements, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = l.db.ExecContext(ctx, query,
		check.ID.String(),
		check.OrderID.String(),
		string(check.Jurisdiction),
		check.Passed,
		productTypes,
		issues,
		requirements,
		check.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("append compliance check: %w", err)
	}
	return nil
}

func (l *PostgresCheckLog) ListByOrder(ctx context.Context, orderID id.OrderID) ([]Check, error) {
	query := `
		SELECT id, order_id, jurisdiction, passed, product_types, issues, requirements, checked_at
		FROM compliance_checks
		WHERE order_id = $1
		ORDER BY checked_at
	`
	rows, err := l.db.QueryContext(ctx, query, orderID.String())
	if err != nil {
		return nil, fmt.Errorf("list compliance checks: %w", err)
	}
	defer rows.Close()

	var checks []Check
	for rows.Next() {
		var (
			c                                 Check
			checkID, ordID, juris             string
			productTypes, issues, requirement []byte
		)
		if err := rows.Scan(&checkID, &ordID, &juris, &c.Passed, &productTypes, &issues, &requirement, &c.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan compliance check: %w", err)
		}
		if parsed, err := id.ParseCheckID(checkID); err == nil {
			c.ID = parsed
		}
		if parsed, err := id.ParseOrderID(ordID); err == nil {
			c.OrderID = parsed
		}
		c.Jurisdiction = id.Jurisdiction(juris)
		if err := json.Unmarshal(productTypes, &c.ProductTypes); err != nil {
			return nil, fmt.Errorf("unmarshal product types: %w", err)
		}
		if err := json.Unmarshal(issues, &c.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		if err := json.Unmarshal(requirement, &c.Requirements); err != nil {
			return nil, fmt.Errorf("unmarshal requirements: %w", err)
		}
		checks = append(checks, c)
	}
	return checks, rows.Err()
}
