package data

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5"

	"github.com/arcadis/entreprise-os/internal/data/pgxutil"
	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/ports"
)

var _ ports.LoginAuditRecorder = (*LoginAuditRepo)(nil)

const defaultAuditLimit = 100

// LoginAuditRepo persists the login audit trail.
type LoginAuditRepo struct {
	DB *sql.DB
}

// NewLoginAuditRepo creates a LoginAuditRepo.
func NewLoginAuditRepo(db *sql.DB) *LoginAuditRepo {
	return &LoginAuditRepo{DB: db}
}

// Record inserts one audit entry.
func (r *LoginAuditRepo) Record(ctx context.Context, entry domainauth.LoginAuditEntry) error {
	if entry.ID == "" {
		return apperrors.ValidationField("id", "audit entry ID is required")
	}
	if entry.Outcome == "" {
		return apperrors.ValidationField("outcome", "audit outcome is required")
	}

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
			INSERT INTO login_audit (id, email, user_id, outcome, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			entry.ID,
			entry.Email,
			entry.UserID,
			entry.Outcome,
			entry.Reason,
			entry.CreatedAt.UTC(),
		)
		return err
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *LoginAuditRepo) ListRecent(ctx context.Context, limit int) ([]domainauth.LoginAuditEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultAuditLimit
	}

	var out []domainauth.LoginAuditEntry
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, email, user_id, outcome, reason, created_at
			FROM login_audit
			ORDER BY created_at DESC
			LIMIT $1`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.LoginAuditEntry])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}
