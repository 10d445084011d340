// Package db persists the settings document in a SQL database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Nixie-Tech-LLC/vakit/internal/model"
	"github.com/Nixie-Tech-LLC/vakit/internal/settings"
)

// the settings table holds a single row
const settingsRow = 1

// Revision is one saved version of the settings document.
type Revision struct {
	Revision int       `db:"revision" json:"revision"`
	Document string    `db:"document" json:"document"`
	SavedAt  time.Time `db:"saved_at" json:"saved_at"`
}

type SettingsStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// compile-time check that SettingsStore implements settings.Repository
var _ settings.Repository = (*SettingsStore)(nil)

func NewSettingsStore(conn *sqlx.DB) *SettingsStore {
	return &SettingsStore{db: conn, now: time.Now}
}

func (s *SettingsStore) Load(ctx context.Context) (model.PrayerSettings, error) {
	var doc string
	err := s.db.GetContext(ctx, &doc, s.db.Rebind(`
		SELECT document
		FROM settings
		WHERE id = ?`), settingsRow)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PrayerSettings{}, settings.ErrNotFound
	}
	if err != nil {
		return model.PrayerSettings{}, fmt.Errorf("loading settings: %w", err)
	}
	return model.DecodeSettings([]byte(doc))
}

// Save replaces the stored document and appends it to the history.
func (s *SettingsStore) Save(ctx context.Context, ps model.PrayerSettings) error {
	data, err := model.EncodeSettings(ps)
	if err != nil {
		return err
	}
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO settings (id, document, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET document = excluded.document,
		updated_at = excluded.updated_at`), settingsRow, string(data), now); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}

	var last sql.NullInt64
	if err := tx.GetContext(ctx, &last, `SELECT MAX(revision) FROM settings_history`); err != nil {
		return fmt.Errorf("reading settings revision: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO settings_history (revision, document, saved_at)
		VALUES (?, ?, ?)`), last.Int64+1, string(data), now); err != nil {
		return fmt.Errorf("recording settings revision: %w", err)
	}
	return tx.Commit()
}

// History returns up to limit saved revisions, newest first.
func (s *SettingsStore) History(ctx context.Context, limit int) ([]Revision, error) {
	var revs []Revision
	err := s.db.SelectContext(ctx, &revs, s.db.Rebind(`
		SELECT revision, document, saved_at
		FROM settings_history
		ORDER BY revision DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("listing settings history: %w", err)
	}
	return revs, nil
}
