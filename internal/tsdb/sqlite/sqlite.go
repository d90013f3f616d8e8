// Package sqlite is the gauge store for single-node deployments, backed by
// a SQLite file through the pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_descriptors (
	name         TEXT PRIMARY KEY,
	value_type   TEXT NOT NULL,
	extra_labels TEXT NOT NULL,
	display_name TEXT NOT NULL,
	description  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS gauge_points (
	metric  TEXT    NOT NULL,
	labels  TEXT    NOT NULL,
	instant INTEGER NOT NULL, -- unix microseconds, UTC
	value   INTEGER NOT NULL,
	PRIMARY KEY (metric, labels, instant)
);`

type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (or creates) the database file and runs migrations.
func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single-writer

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (store *SqliteStore) Close() error {
	return store.db.Close()
}

func (store *SqliteStore) EnsureMetric(ctx context.Context, def model.MetricDefinition) error {
	extra := strings.Join(def.ExtraLabels, ",")

	res, err := store.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metric_descriptors (name, value_type, extra_labels, display_name, description)
		 VALUES (?, ?, ?, ?, ?)`,
		def.Name, string(def.Kind), extra, def.DisplayName, def.Description)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrMetricRegistration, def.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}

	var valueType, existingExtra string
	err = store.db.QueryRowContext(ctx,
		`SELECT value_type, extra_labels FROM metric_descriptors WHERE name = ?`,
		def.Name).Scan(&valueType, &existingExtra)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrMetricRegistration, def.Name, err)
	}
	if valueType != string(def.Kind) || existingExtra != extra {
		return fmt.Errorf("%w: %s already registered with a different shape",
			errs.ErrMetricRegistration, def.Name)
	}
	return nil
}

func (store *SqliteStore) WritePoint(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error {
	if err := metrics.ValidateLabels(def, labels); err != nil {
		return err
	}

	res, err := store.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO gauge_points (metric, labels, instant, value) VALUES (?, ?, ?, ?)`,
		def.Name, labels.Canonical(), instant.UTC().UnixMicro(), value)
	if err != nil {
		return fmt.Errorf("write point %s: %w", def.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s at %s", errs.ErrDuplicatePoint,
			def.Name, metrics.FormatInstant(instant))
	}
	return nil
}

func (store *SqliteStore) QueryPoints(ctx context.Context, def model.MetricDefinition, start, end time.Time, filters model.LabelSet, fn tsdb.PointFunc) error {
	where := `metric = ? AND instant >= ? AND instant <= ?`
	args := []any{def.Name, start.UTC().UnixMicro(), end.UTC().UnixMicro()}

	// Filters are a subset match against the canonical label string.
	for k, v := range filters {
		where += ` AND labels LIKE ?`
		args = append(args, "%"+fmt.Sprintf("%s=%q", k, v)+"%")
	}

	var count int
	err := store.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT labels) FROM gauge_points WHERE `+where, args...).Scan(&count)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
	}
	if count > 1 {
		return fmt.Errorf("%w: %s matched %d series", errs.ErrAmbiguousSeries, def.Name, count)
	}

	rows, err := store.db.QueryContext(ctx,
		`SELECT instant, value FROM gauge_points WHERE `+where+` ORDER BY instant`, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var micros int64
		var p model.Point
		if err := rows.Scan(&micros, &p.Value); err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
		}
		p.Instant = time.UnixMicro(micros).UTC()
		p.Labels = filters.Clone()
		if err := fn(p); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
	}
	return nil
}
