package data

// Package data contains Postgres repositories built on the pgx stdlib
// bridge.

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/arcadis/entreprise-os/internal/data/pgxutil"
	domainauth "github.com/arcadis/entreprise-os/internal/domain/auth"
	apperrors "github.com/arcadis/entreprise-os/internal/errors"
	"github.com/arcadis/entreprise-os/internal/ports"
)

var (
	_ ports.ProfileResolver = (*ProfileRepo)(nil)
	_ ports.ProfileAdmin    = (*ProfileRepo)(nil)
)

const profileColumns = `user_id, role, first_name, last_name, company_id, is_active, deleted_at, created_at, updated_at`

const (
	profileByUserIDQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE user_id = $1`

	profilesByCompanyQuery = `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE company_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC`
)

// ProfileRepo provides database operations for tenant profiles.
type ProfileRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewProfileRepo creates a ProfileRepo with the real clock.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: RealTimeProvider{}}
}

// NewProfileRepoWithTimeProvider creates a ProfileRepo with a custom clock
// (useful for tests).
func NewProfileRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ProfileRepo {
	return &ProfileRepo{DB: db, timeProvider: tp}
}

// ProfileByUserID fetches a profile by identity user ID. Soft-deleted rows
// are returned too; callers that must exclude them check Deleted().
func (r *ProfileRepo) ProfileByUserID(ctx context.Context, userID string) (*domainauth.ProfileRecord, error) {
	if userID == "" {
		return nil, apperrors.Validation("user ID is required")
	}

	var out domainauth.ProfileRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profileByUserIDQuery, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.ProfileRecord])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// CreateProfile provisions a profile for an identity. An empty role defaults
// to the least-privileged tier.
func (r *ProfileRepo) CreateProfile(ctx context.Context, in ports.ProfileInput) (*domainauth.ProfileRecord, error) {
	if err := validateProfileInput(in, false); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = domainauth.DefaultRole
	}

	now := r.timeProvider.Now().UTC()
	var out domainauth.ProfileRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO profiles (
				user_id, role, first_name, last_name, company_id, is_active, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, TRUE, $6, $6
			) RETURNING `+profileColumns,
			in.UserID,
			role,
			strings.TrimSpace(in.FirstName),
			strings.TrimSpace(in.LastName),
			in.CompanyID,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.ProfileRecord])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// UpdateProfile rewrites the mutable attributes of a live profile.
func (r *ProfileRepo) UpdateProfile(ctx context.Context, in ports.ProfileInput) (*domainauth.ProfileRecord, error) {
	if err := validateProfileInput(in, true); err != nil {
		return nil, err
	}

	now := r.timeProvider.Now().UTC()
	var out domainauth.ProfileRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			UPDATE profiles
			SET role = $2,
			    first_name = $3,
			    last_name = $4,
			    company_id = $5,
			    updated_at = $6
			WHERE user_id = $1 AND deleted_at IS NULL
			RETURNING `+profileColumns,
			in.UserID,
			in.Role,
			strings.TrimSpace(in.FirstName),
			strings.TrimSpace(in.LastName),
			in.CompanyID,
			now,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[domainauth.ProfileRecord])
		return err
	}); err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsNotFound(mapped) {
			return nil, apperrors.NotFoundf("profile %s not found", in.UserID)
		}
		return nil, mapped
	}
	return &out, nil
}

// ListProfilesByCompany returns the live profiles of one company.
func (r *ProfileRepo) ListProfilesByCompany(ctx context.Context, companyID string) ([]domainauth.ProfileRecord, error) {
	if companyID == "" {
		return nil, apperrors.Validation("company ID is required")
	}

	var out []domainauth.ProfileRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, profilesByCompanyQuery, companyID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[domainauth.ProfileRecord])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return out, nil
}

// SetProfileActive toggles the is_active flag of a live profile.
func (r *ProfileRepo) SetProfileActive(ctx context.Context, userID string, active bool) error {
	if userID == "" {
		return apperrors.Validation("user ID is required")
	}

	return r.execExpectingRow(ctx, `
		UPDATE profiles
		SET is_active = $2, updated_at = $3
		WHERE user_id = $1 AND deleted_at IS NULL`,
		userID, active, r.timeProvider.Now().UTC())
}

// SoftDeleteProfile marks a profile deleted and inactive. Deleting an
// already deleted profile is a NotFound.
func (r *ProfileRepo) SoftDeleteProfile(ctx context.Context, userID string) error {
	if userID == "" {
		return apperrors.Validation("user ID is required")
	}

	now := r.timeProvider.Now().UTC()
	return r.execExpectingRow(ctx, `
		UPDATE profiles
		SET deleted_at = $2, is_active = FALSE, updated_at = $2
		WHERE user_id = $1 AND deleted_at IS NULL`,
		userID, now)
}

// execExpectingRow runs a write and maps zero affected rows to NotFound.
func (r *ProfileRepo) execExpectingRow(ctx context.Context, query string, args ...any) error {
	var affected int64
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		tag, err := conn.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	}); err != nil {
		return apperrors.MapDBError(err)
	}
	if affected == 0 {
		return apperrors.NotFound("profile not found")
	}
	return nil
}

func validateProfileInput(in ports.ProfileInput, requireRole bool) error {
	if in.UserID == "" {
		return apperrors.ValidationField("user_id", "user ID is required")
	}
	if in.Role == "" && !requireRole {
		return nil
	}
	if !in.Role.Valid() {
		return apperrors.ValidationField("role", "unknown role")
	}
	return nil
}
