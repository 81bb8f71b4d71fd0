package auth

import "time"

// Sign-in outcomes recorded in the login audit trail and exported as metric
// labels.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeDeactivated        = "deactivated"
	OutcomeDeleted            = "deleted"
	OutcomeRateLimited        = "rate_limited"
	OutcomeError              = "error"
)

// LoginAuditEntry is one row of the login audit trail.
type LoginAuditEntry struct {
	ID        string    `db:"id"         json:"id"`
	Email     string    `db:"email"      json:"email"`
	UserID    string    `db:"user_id"    json:"user_id,omitempty"`
	Outcome   string    `db:"outcome"    json:"outcome"`
	Reason    string    `db:"reason"     json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
