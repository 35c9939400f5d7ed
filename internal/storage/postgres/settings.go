package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/cafe-pos/internal/domain/settings"
)

const (
	getSettingsSQL = `SELECT business_name, tax_number, address, tax_rate, updated_at
		FROM settings WHERE id`

	upsertSettingsSQL = `INSERT INTO settings (id, business_name, tax_number, address, tax_rate, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			tax_number    = EXCLUDED.tax_number,
			address       = EXCLUDED.address,
			tax_rate      = EXCLUDED.tax_rate,
			updated_at    = EXCLUDED.updated_at`
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores the single settings row.
type SettingsRepository struct {
	q querier
}

// Get returns the saved settings or settings.ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var s settings.Settings
	err := r.q.QueryRow(ctx, getSettingsSQL).Scan(
		&s.BusinessName, &s.TaxNumber, &s.Address, &s.TaxRate, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, settings.ErrNotFound
		}
		return nil, fmt.Errorf("getting settings: %w", err)
	}
	return &s, nil
}

// Upsert replaces the settings row.
func (r *SettingsRepository) Upsert(ctx context.Context, s *settings.Settings) error {
	_, err := r.q.Exec(ctx, upsertSettingsSQL, s.BusinessName, s.TaxNumber, s.Address, s.TaxRate, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
