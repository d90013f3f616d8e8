// Package postgres is the pgx-backed gauge store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gctaylor/techsubs/internal/errs"
	"github.com/gctaylor/techsubs/internal/metrics"
	"github.com/gctaylor/techsubs/internal/tsdb"
	"github.com/gctaylor/techsubs/internal/utils"
	"github.com/gctaylor/techsubs/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS metric_descriptors (
	name         text PRIMARY KEY,
	value_type   text NOT NULL,
	extra_labels text NOT NULL,
	display_name text NOT NULL,
	description  text NOT NULL
);
CREATE TABLE IF NOT EXISTS gauge_points (
	metric  text        NOT NULL,
	labels  text        NOT NULL,
	instant timestamptz NOT NULL,
	value   bigint      NOT NULL,
	PRIMARY KEY (metric, labels, instant)
);`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseDsn string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, databaseDsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (store *PostgresStore) Close() {
	store.db.Close()
}

func (store *PostgresStore) Ping(ctx context.Context) error {
	return store.db.Ping(ctx)
}

func (store *PostgresStore) EnsureMetric(ctx context.Context, def model.MetricDefinition) error {
	extra := strings.Join(def.ExtraLabels, ",")

	return utils.WithRetry(ctx, func() error {
		tag, err := store.db.Exec(ctx,
			`INSERT INTO metric_descriptors (name, value_type, extra_labels, display_name, description)
			 VALUES ($1, $2, $3, $4, $5) ON CONFLICT (name) DO NOTHING`,
			def.Name, string(def.Kind), extra, def.DisplayName, def.Description)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrMetricRegistration, def.Name, err)
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		var valueType, existingExtra string
		err = store.db.QueryRow(ctx,
			`SELECT value_type, extra_labels FROM metric_descriptors WHERE name = $1`,
			def.Name).Scan(&valueType, &existingExtra)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrMetricRegistration, def.Name, err)
		}
		if valueType != string(def.Kind) || existingExtra != extra {
			return fmt.Errorf("%w: %s already registered with a different shape",
				errs.ErrMetricRegistration, def.Name)
		}
		return nil
	})
}

func (store *PostgresStore) WritePoint(ctx context.Context, def model.MetricDefinition, value int64, labels model.LabelSet, instant time.Time) error {
	if err := metrics.ValidateLabels(def, labels); err != nil {
		return err
	}

	return utils.WithRetry(ctx, func() error {
		_, err := store.db.Exec(ctx,
			`INSERT INTO gauge_points (metric, labels, instant, value) VALUES ($1, $2, $3, $4)`,
			def.Name, labels.Canonical(), instant.UTC(), value)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s at %s", errs.ErrDuplicatePoint,
				def.Name, metrics.FormatInstant(instant))
		}
		return err
	})
}

func (store *PostgresStore) QueryPoints(ctx context.Context, def model.MetricDefinition, start, end time.Time, filters model.LabelSet, fn tsdb.PointFunc) error {
	where := `metric = $1 AND instant >= $2 AND instant <= $3`
	args := []any{def.Name, start.UTC(), end.UTC()}

	// Filters are a subset match against the canonical label string.
	for k, v := range filters {
		args = append(args, "%"+fmt.Sprintf("%s=%q", k, v)+"%")
		where += fmt.Sprintf(" AND labels LIKE $%d", len(args))
	}

	var count int
	err := store.db.QueryRow(ctx,
		`SELECT COUNT(DISTINCT labels) FROM gauge_points WHERE `+where, args...).Scan(&count)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
	}
	if count > 1 {
		return fmt.Errorf("%w: %s matched %d series", errs.ErrAmbiguousSeries, def.Name, count)
	}

	rows, err := store.db.Query(ctx,
		`SELECT instant, value FROM gauge_points WHERE `+where+` ORDER BY instant`, args...)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.Instant, &p.Value); err != nil {
			return fmt.Errorf("%w: %s: %v", errs.ErrQuery, def.Name, err)
		}
		p.Instant = p.Instant.UTC()
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
