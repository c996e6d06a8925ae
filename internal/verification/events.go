package verification

import (
	"time"

	id "verity/pkg/domain"
)

// SessionCompleted is published on the completions channel when a session
// reaches a terminal verdict. Downstream consumers (delivery
// verification, audit) subscribe via the channel injected into the
// service; there is no global emitter.
type SessionCompleted struct {
	SessionID   id.SessionID
	OrderID     id.OrderID
	CustomerID  id.CustomerID
	Verified    bool
	Result      Result
	CompletedAt time.Time
}
