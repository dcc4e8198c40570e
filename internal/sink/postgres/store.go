package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chainsync/internal/sink"
)

// Store persists points in a single append-only table. Tags and fields are
// kept as jsonb so the schema survives new measurements without migrations.
type Store struct {
	pool *pgxpool.Pool
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS points (
	id BIGSERIAL PRIMARY KEY,
	measurement TEXT NOT NULL,
	tags JSONB NOT NULL DEFAULT '{}',
	fields JSONB NOT NULL DEFAULT '{}',
	ts TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS points_measurement_ts_idx ON points (measurement, ts);
CREATE INDEX IF NOT EXISTS points_block_number_idx
	ON points (((fields->>'block_number')::bigint))
	WHERE measurement = 'blocks';
`

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// WritePoints inserts a batch of points.
func (s *Store) WritePoints(ctx context.Context, points []sink.Point) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, point := range points {
		tags, err := json.Marshal(point.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		fields, err := json.Marshal(point.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields: %w", err)
		}
		batch.Queue(
			`INSERT INTO points (measurement, tags, fields, ts) VALUES ($1, $2, $3, $4)`,
			point.Measurement, tags, fields, point.Time,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("write points: %w", err)
		}
	}
	return nil
}

// QueryLatestBlock returns the highest stored block number.
func (s *Store) QueryLatestBlock(ctx context.Context) (uint64, bool, error) {
	var number int64
	row := s.pool.QueryRow(ctx, `
		SELECT (fields->>'block_number')::bigint
		FROM points
		WHERE measurement = 'blocks'
		ORDER BY (fields->>'block_number')::bigint DESC
		LIMIT 1
	`)
	if err := row.Scan(&number); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if number < 0 {
		return 0, false, fmt.Errorf("negative block number in store: %d", number)
	}
	return uint64(number), true, nil
}

// Reset drops all points. Paired with a checkpoint reset by the operator
// resync command.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE points`)
	return err
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
