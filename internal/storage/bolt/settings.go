package bolt

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/xenking/cafe-pos/internal/domain/settings"
)

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores the settings document under a fixed key.
type SettingsRepository struct {
	exec executor
}

// Get returns the saved settings or settings.ErrNotFound.
func (r *SettingsRepository) Get(ctx context.Context) (*settings.Settings, error) {
	var s settings.Settings
	err := r.exec.view(func(tx *bbolt.Tx) error {
		ok, err := getDoc(tx.Bucket(bucketSettings), settingsKey, &s)
		if err != nil {
			return err
		}
		if !ok {
			return settings.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Upsert replaces the settings document.
func (r *SettingsRepository) Upsert(ctx context.Context, s *settings.Settings) error {
	err := r.exec.update(func(tx *bbolt.Tx) error {
		return putDoc(tx.Bucket(bucketSettings), settingsKey, s)
	})
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}
