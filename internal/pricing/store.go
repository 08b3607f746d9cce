package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/westgate-auto/backend-westgate/internal/rates"
)

// Sentinel errors for admin operations against unknown rows.
var (
	ErrVersionNotFound  = errors.New("pricing: rate sheet version not found")
	ErrOverrideNotFound = errors.New("pricing: override not found")
)

// OverrideRecord is a persisted override together with its audit metadata.
// Overrides are soft-toggled via is_active rather than deleted so the history
// of what was in force stays queryable.
type OverrideRecord struct {
	ID     uuid.UUID  `json:"id"`
	UserID *uuid.UUID `json:"user_id,omitempty"`
	Override
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SheetVersion is one immutable uploaded ground-rate sheet. Exactly one
// version is active at a time.
type SheetVersion struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CSVText     string    `json:"-"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PGStore persists pricing overrides and rate sheet versions in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewStore constructs a PGStore over the shared connection pool.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const overrideColumns = `id, user_id, ocean_rates, ground_fee_delta, pickup_surcharge, service_fee, hybrid_surcharge, is_active, created_at, updated_at`

// UserOverride returns the active override for one user, or nil when none is
// active. Inactive history rows are never returned.
func (s *PGStore) UserOverride(ctx context.Context, userID uuid.UUID) (*Override, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+overrideColumns+`
		FROM pricing_overrides
		WHERE user_id = $1 AND is_active
		ORDER BY updated_at DESC
		LIMIT 1`, userID)
	record, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pricing: load user override: %w", err)
	}
	return &record.Override, nil
}

// DefaultOverride returns the active system-wide override, or nil.
func (s *PGStore) DefaultOverride(ctx context.Context) (*Override, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+overrideColumns+`
		FROM pricing_overrides
		WHERE user_id IS NULL AND is_active
		ORDER BY updated_at DESC
		LIMIT 1`)
	record, err := scanOverride(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pricing: load default override: %w", err)
	}
	return &record.Override, nil
}

// UpsertUserOverride deactivates any active override for the user and inserts
// a fresh row, preserving history.
func (s *PGStore) UpsertUserOverride(ctx context.Context, userID uuid.UUID, ov Override) (OverrideRecord, error) {
	return s.upsert(ctx, &userID, ov)
}

// UpsertDefaultOverride replaces the active system-wide override.
func (s *PGStore) UpsertDefaultOverride(ctx context.Context, ov Override) (OverrideRecord, error) {
	return s.upsert(ctx, nil, ov)
}

func (s *PGStore) upsert(ctx context.Context, userID *uuid.UUID, ov Override) (OverrideRecord, error) {
	oceanJSON, err := json.Marshal(ov.OceanRates)
	if err != nil {
		return OverrideRecord{}, fmt.Errorf("pricing: encode ocean rates: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return OverrideRecord{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if userID != nil {
		_, err = tx.Exec(ctx, `UPDATE pricing_overrides SET is_active = FALSE, updated_at = now() WHERE user_id = $1 AND is_active`, *userID)
	} else {
		_, err = tx.Exec(ctx, `UPDATE pricing_overrides SET is_active = FALSE, updated_at = now() WHERE user_id IS NULL AND is_active`)
	}
	if err != nil {
		return OverrideRecord{}, fmt.Errorf("pricing: retire previous override: %w", err)
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO pricing_overrides (user_id, ocean_rates, ground_fee_delta, pickup_surcharge, service_fee, hybrid_surcharge, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+overrideColumns,
		userID, oceanJSON, ov.GroundFeeDelta, ov.PickupSurcharge, ov.ServiceFee, ov.HybridSurcharge, ov.Active)
	record, err := scanOverride(row)
	if err != nil {
		return OverrideRecord{}, fmt.Errorf("pricing: insert override: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return OverrideRecord{}, err
	}
	return record, nil
}

// DeactivateOverride soft-disables one override row by id.
func (s *PGStore) DeactivateOverride(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `UPDATE pricing_overrides SET is_active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pricing: deactivate override: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOverrideNotFound
	}
	return nil
}

// ListOverrides returns override history, newest first.
func (s *PGStore) ListOverrides(ctx context.Context, limit int32) ([]OverrideRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+overrideColumns+`
		FROM pricing_overrides
		ORDER BY updated_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pricing: list overrides: %w", err)
	}
	defer rows.Close()

	var records []OverrideRecord
	for rows.Next() {
		record, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ActiveVersion returns the currently active sheet version, or nil when no
// version has ever been activated (the embedded baseline applies then).
func (s *PGStore) ActiveVersion(ctx context.Context) (*SheetVersion, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, csv_text, is_active, created_at
		FROM rate_sheet_versions
		WHERE is_active
		LIMIT 1`)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("pricing: load active version: %w", err)
	}
	return &version, nil
}

// InsertVersion stores a new immutable sheet version. It is not activated.
func (s *PGStore) InsertVersion(ctx context.Context, name, description, csvText string) (SheetVersion, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO rate_sheet_versions (name, description, csv_text)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, csv_text, is_active, created_at`,
		name, description, csvText)
	version, err := scanVersion(row)
	if err != nil {
		return SheetVersion{}, fmt.Errorf("pricing: insert version: %w", err)
	}
	return version, nil
}

// ActivateVersion flips the active flag to the given version. Deactivate-all
// and activate-one run in a single transaction so there is never a window
// with zero active versions.
func (s *PGStore) ActivateVersion(ctx context.Context, id uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `UPDATE rate_sheet_versions SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("pricing: deactivate versions: %w", err)
	}
	tag, err := tx.Exec(ctx, `UPDATE rate_sheet_versions SET is_active = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pricing: activate version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionNotFound
	}
	return tx.Commit(ctx)
}

// ListVersions returns version metadata, newest first, without sheet bodies.
func (s *PGStore) ListVersions(ctx context.Context) ([]SheetVersion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, '', is_active, created_at
		FROM rate_sheet_versions
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("pricing: list versions: %w", err)
	}
	defer rows.Close()

	var versions []SheetVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}
	return versions, rows.Err()
}

func scanOverride(row pgx.Row) (OverrideRecord, error) {
	var (
		record    OverrideRecord
		oceanJSON []byte
	)
	err := row.Scan(
		&record.ID,
		&record.UserID,
		&oceanJSON,
		&record.GroundFeeDelta,
		&record.PickupSurcharge,
		&record.ServiceFee,
		&record.HybridSurcharge,
		&record.Active,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return OverrideRecord{}, err
	}
	if len(oceanJSON) > 0 {
		var oceanRates []rates.OceanRate
		if err := json.Unmarshal(oceanJSON, &oceanRates); err != nil {
			return OverrideRecord{}, fmt.Errorf("pricing: decode ocean rates: %w", err)
		}
		record.OceanRates = oceanRates
	}
	return record, nil
}

func scanVersion(row pgx.Row) (SheetVersion, error) {
	var version SheetVersion
	err := row.Scan(
		&version.ID,
		&version.Name,
		&version.Description,
		&version.CSVText,
		&version.Active,
		&version.CreatedAt,
	)
	return version, err
}
