// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package canary

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/yomira/internal/platform/database/schema"
	"github.com/taibuivan/yomira/internal/platform/dberr"
)

// PostgresStore implements [Store] using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a [PostgresStore].
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Latest(ctx context.Context) (*StageRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s DESC
		LIMIT 1`,
		schema.CanaryStageRecord.ID, schema.CanaryStageRecord.Stage, schema.CanaryStageRecord.RolloutPercent,
		schema.CanaryStageRecord.UpdatedAt, schema.CanaryStageRecord.UpdatedBy, schema.CanaryStageRecord.Notes,
		schema.CanaryStageRecord.Table, schema.CanaryStageRecord.ID,
	)

	row := s.pool.QueryRow(ctx, query)
	record, err := scanStageRecord(row)
	if err != nil {
		return nil, dberr.Wrap(err, "canary.latest")
	}
	return record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record StageRecord) (*StageRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, now(), $3, $4)
		RETURNING %s, %s, %s, %s, %s, %s`,
		schema.CanaryStageRecord.Table,
		schema.CanaryStageRecord.Stage, schema.CanaryStageRecord.RolloutPercent,
		schema.CanaryStageRecord.UpdatedAt, schema.CanaryStageRecord.UpdatedBy, schema.CanaryStageRecord.Notes,
		schema.CanaryStageRecord.ID, schema.CanaryStageRecord.Stage, schema.CanaryStageRecord.RolloutPercent,
		schema.CanaryStageRecord.UpdatedAt, schema.CanaryStageRecord.UpdatedBy, schema.CanaryStageRecord.Notes,
	)

	row := s.pool.QueryRow(ctx, query, int(record.Stage), record.RolloutPercent, record.UpdatedBy, record.Notes)
	inserted, err := scanStageRecord(row)
	if err != nil {
		return nil, dberr.Wrap(err, "canary.insert")
	}
	return inserted, nil
}

func (s *PostgresStore) History(ctx context.Context, limit int) ([]StageRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`
		SELECT %s, %s, %s, %s, %s, %s
		FROM %s
		ORDER BY %s DESC
		LIMIT $1`,
		schema.CanaryStageRecord.ID, schema.CanaryStageRecord.Stage, schema.CanaryStageRecord.RolloutPercent,
		schema.CanaryStageRecord.UpdatedAt, schema.CanaryStageRecord.UpdatedBy, schema.CanaryStageRecord.Notes,
		schema.CanaryStageRecord.Table, schema.CanaryStageRecord.ID,
	)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, dberr.Wrap(err, "canary.history")
	}
	defer rows.Close()

	var out []StageRecord
	for rows.Next() {
		record, err := scanStageRecord(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "canary.history.scan")
		}
		out = append(out, *record)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStageRecord(row rowScanner) (*StageRecord, error) {
	var record StageRecord
	var stage int
	err := row.Scan(&record.ID, &stage, &record.RolloutPercent, &record.UpdatedAt, &record.UpdatedBy, &record.Notes)
	if err != nil {
		return nil, err
	}
	record.Stage = Stage(stage)
	return &record, nil
}
