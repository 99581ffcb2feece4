package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"nurseroute/internal/model"
)

// Postgres stores solutions in a single table through database/sql and the
// pgx driver.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)
	p := &Postgres{db: db}
	if err := p.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS solutions (
        id          uuid PRIMARY KEY,
        run_id      text NOT NULL DEFAULT '',
        instance    text NOT NULL,
        island      integer NOT NULL DEFAULT 0,
        generation  integer NOT NULL DEFAULT 0,
        fitness     double precision NOT NULL,
        feasible    boolean NOT NULL,
        routes      jsonb NOT NULL,
        created_at  timestamptz NOT NULL DEFAULT now()
    )`,
	`CREATE INDEX IF NOT EXISTS solutions_instance_rank ON solutions (instance, feasible DESC, fitness, created_at)`,
	`CREATE INDEX IF NOT EXISTS solutions_run ON solutions (run_id)`,
}

// Migrate creates the schema. It is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return tx.Commit()
}

func (p *Postgres) SaveSolution(ctx context.Context, s model.Solution) (model.Solution, error) {
	id, err := solutionID(s.ID)
	if err != nil {
		return model.Solution{}, err
	}
	s.ID = id.String()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	routes, err := encodeRoutes(s.Routes)
	if err != nil {
		return model.Solution{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO solutions (id, run_id, instance, island, generation, fitness, feasible, routes, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		id, s.RunID, s.Instance, s.Island, s.Generation, s.Fitness, s.Feasible, routes, s.CreatedAt)
	if err != nil {
		return model.Solution{}, err
	}
	return s, nil
}

const selectSolutions = `SELECT id::text, run_id, instance, island, generation, fitness, feasible, routes, created_at
    FROM solutions WHERE instance=$1 ORDER BY feasible DESC, fitness, created_at`

func listQuery(limit int) (string, []any) {
	if limit > 0 {
		return selectSolutions + ` LIMIT $2`, []any{limit}
	}
	return selectSolutions, nil
}

func (p *Postgres) ListSolutions(ctx context.Context, instance string, limit int) ([]model.Solution, error) {
	q, extra := listQuery(limit)
	rows, err := p.db.QueryContext(ctx, q, append([]any{instance}, extra...)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Solution{}
	for rows.Next() {
		var s model.Solution
		var routes []byte
		if err := rows.Scan(&s.ID, &s.RunID, &s.Instance, &s.Island, &s.Generation, &s.Fitness, &s.Feasible, &routes, &s.CreatedAt); err != nil {
			return nil, err
		}
		if s.Routes, err = decodeRoutes(routes); err != nil {
			return nil, fmt.Errorf("solution %s: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) BestSolution(ctx context.Context, instance string) (model.Solution, error) {
	sols, err := p.ListSolutions(ctx, instance, 1)
	if err != nil {
		return model.Solution{}, err
	}
	if len(sols) == 0 {
		return model.Solution{}, ErrNotFound
	}
	return sols[0], nil
}

func (p *Postgres) Close() error { return p.db.Close() }

func solutionID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("solution id %q: %w", s, err)
	}
	return id, nil
}

func encodeRoutes(routes [][]int) ([]byte, error) {
	if routes == nil {
		routes = [][]int{}
	}
	return json.Marshal(routes)
}

func decodeRoutes(b []byte) ([][]int, error) {
	if len(b) == 0 {
		return nil, errors.New("empty routes column")
	}
	var routes [][]int
	if err := json.Unmarshal(b, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}
