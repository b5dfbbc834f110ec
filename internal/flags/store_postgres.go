// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package flags

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
	"github.com/taibuivan/yomira/pkg/uuid"
)

// PostgresStore implements [Store] using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a [PostgresStore].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Get(ctx context.Context, name string) (*FeatureFlag, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		WHERE %s = $1`,
		schema.FeatureFlag.ID, schema.FeatureFlag.Name, schema.FeatureFlag.Enabled,
		schema.FeatureFlag.Category, schema.FeatureFlag.Description, schema.FeatureFlag.DefaultValue,
		schema.FeatureFlag.CreatedAt, schema.FeatureFlag.UpdatedAt,
		schema.FeatureFlag.Table, schema.FeatureFlag.Name,
	)

	row := s.pool.QueryRow(ctx, query, name)
	flag, err := scanFlag(row)
	if err != nil {
		return nil, dberr.Wrap(err, "flags.get")
	}
	return flag, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]FeatureFlag, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s, %s`,
		schema.FeatureFlag.ID, schema.FeatureFlag.Name, schema.FeatureFlag.Enabled,
		schema.FeatureFlag.Category, schema.FeatureFlag.Description, schema.FeatureFlag.DefaultValue,
		schema.FeatureFlag.CreatedAt, schema.FeatureFlag.UpdatedAt,
		schema.FeatureFlag.Table, schema.FeatureFlag.Category, schema.FeatureFlag.Name,
	)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, dberr.Wrap(err, "flags.list")
	}
	defer rows.Close()

	var out []FeatureFlag
	for rows.Next() {
		flag, err := scanFlag(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "flags.list.scan")
		}
		out = append(out, *flag)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Upsert(ctx context.Context, flag FeatureFlag) (*FeatureFlag, error) {
	if flag.ID == "" {
		flag.ID = uuid.New()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s,
			%s = now()
		RETURNING %s, %s, %s, %s, %s, %s, %s, %s`,
		schema.FeatureFlag.Table,
		schema.FeatureFlag.ID, schema.FeatureFlag.Name, schema.FeatureFlag.Enabled,
		schema.FeatureFlag.Category, schema.FeatureFlag.Description, schema.FeatureFlag.DefaultValue,
		schema.FeatureFlag.CreatedAt, schema.FeatureFlag.UpdatedAt,
		schema.FeatureFlag.Name,
		schema.FeatureFlag.Enabled, schema.FeatureFlag.Enabled,
		schema.FeatureFlag.Category, schema.FeatureFlag.Category,
		schema.FeatureFlag.Description, schema.FeatureFlag.Description,
		schema.FeatureFlag.DefaultValue, schema.FeatureFlag.DefaultValue,
		schema.FeatureFlag.UpdatedAt,
		schema.FeatureFlag.ID, schema.FeatureFlag.Name, schema.FeatureFlag.Enabled,
		schema.FeatureFlag.Category, schema.FeatureFlag.Description, schema.FeatureFlag.DefaultValue,
		schema.FeatureFlag.CreatedAt, schema.FeatureFlag.UpdatedAt,
	)

	row := s.pool.QueryRow(ctx, query,
		flag.ID, flag.Name, flag.Enabled, flag.Category, flag.Description, flag.DefaultValue,
	)
	stored, err := scanFlag(row)
	if err != nil {
		return nil, dberr.Wrap(err, "flags.upsert")
	}
	return stored, nil
}

func (s *PostgresStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = $1, %s = now() WHERE %s = $2`,
		schema.FeatureFlag.Table, schema.FeatureFlag.Enabled, schema.FeatureFlag.UpdatedAt, schema.FeatureFlag.Name,
	)

	tag, err := s.pool.Exec(ctx, query, enabled, name)
	if err != nil {
		return dberr.Wrap(err, "flags.set_enabled")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// rowScanner abstracts pgx.Row / pgx.Rows for a single scan call.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlag(row rowScanner) (*FeatureFlag, error) {
	var flag FeatureFlag
	var category string

	err := row.Scan(
		&flag.ID, &flag.Name, &flag.Enabled, &category, &flag.Description,
		&flag.DefaultValue, &flag.CreatedAt, &flag.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, pgx.ErrNoRows
		}
		return nil, err
	}
	flag.Category = Category(category)
	return &flag, nil
}
