package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/basketarb/internal/domain"
	"github.com/alanyoungcy/basketarb/internal/executor"
)

// ExecutionRecord is one stored execution outcome with its unwinds.
type ExecutionRecord struct {
	ID           int64
	BasketKey    string
	Strategy     string
	Backend      string
	Status       string
	Attempts     int
	SharesPerLeg float64
	ExecCost     float64
	NetEdge      float64
	Reason       string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// HistoryStore persists qualified candidates and execution outcomes for
// post-hoc analysis. The engine never reads this data on its hot path, so
// writes are best-effort from the caller's point of view.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a HistoryStore on the given pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

// SaveCandidate inserts one qualified candidate.
func (s *HistoryStore) SaveCandidate(ctx context.Context, cand domain.Candidate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO candidates (basket_key, strategy, title, shares_per_leg, basket_cost, payout_after_fee, fixed_cost, net_edge, edge_pct, exec_cost, exec_edge, leg_count, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		cand.BasketKey, string(cand.Strategy), cand.Title, cand.SharesPerLeg,
		cand.BasketCost, cand.PayoutAfterFee, cand.FixedCost, cand.NetEdge,
		cand.EdgePct, cand.ExecCost, cand.ExecEdge, len(cand.Legs), cand.EvaluatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert candidate %s: %w", cand.BasketKey, err)
	}
	return nil
}

// SaveExecution inserts one execution outcome and its unwinds.
func (s *HistoryStore) SaveExecution(ctx context.Context, cand domain.Candidate, backend string, res executor.Result, startedAt, finishedAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO executions (basket_key, strategy, backend, status, attempts, shares_per_leg, exec_cost, net_edge, reason, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		cand.BasketKey, string(cand.Strategy), backend, string(res.Status),
		res.Attempts, cand.SharesPerLeg, cand.ExecCost, cand.NetEdge,
		res.Reason, startedAt, finishedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", cand.BasketKey, err)
	}

	for _, uw := range res.Unwinds {
		errText := ""
		if uw.Err != nil {
			errText = uw.Err.Error()
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO execution_unwinds (execution_id, token_id, size, sell_price, error)
			VALUES ($1, $2, $3, $4, $5)`,
			id, uw.TokenID, uw.Size, uw.SellPrice, errText,
		)
		if err != nil {
			return fmt.Errorf("postgres: insert unwind: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// ListRecentExecutions returns the most recent executions, newest first.
func (s *HistoryStore) ListRecentExecutions(ctx context.Context, limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, basket_key, strategy, backend, status, attempts, shares_per_leg, exec_cost, net_edge, reason, started_at, finished_at
		FROM executions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions: %w", err)
	}
	defer rows.Close()

	var list []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		if err := rows.Scan(&rec.ID, &rec.BasketKey, &rec.Strategy, &rec.Backend,
			&rec.Status, &rec.Attempts, &rec.SharesPerLeg, &rec.ExecCost,
			&rec.NetEdge, &rec.Reason, &rec.StartedAt, &rec.FinishedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// SumNotionalSince returns total executed notional since the given time, for
// reconciling the daily caps after a restart mid-day.
func (s *HistoryStore) SumNotionalSince(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(exec_cost), 0) FROM executions
		WHERE status = 'filled' AND started_at >= $1`, since).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum executed notional: %w", err)
	}
	return sum, nil
}
