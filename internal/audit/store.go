// Package audit 将护栏评估记录持久化到 SQLite，便于事后追查覆盖原因。
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stockadvisor/internal/guardrail"
	"stockadvisor/internal/types"

	_ "modernc.org/sqlite"
)

// Store is a guardrail.AuditSink backed by SQLite.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// NewStore 初始化 SQLite 存储。
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit path 不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS guardrail_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ticker TEXT NOT NULL,
			risk_appetite TEXT NOT NULL,
			beta REAL,
			proposed_action TEXT NOT NULL,
			effective_action TEXT NOT NULL,
			triggered INTEGER NOT NULL,
			reason TEXT,
			evaluated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_guardrail_audit_ticker ON guardrail_audit(ticker);`,
		`CREATE INDEX IF NOT EXISTS idx_guardrail_audit_run ON guardrail_audit(run_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close 关闭底层 DB。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("audit store closed")
	}
	return s.db, nil
}

func (s *Store) Record(ctx context.Context, rec guardrail.Record) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	evaluatedAt := rec.EvaluatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = time.Now()
	}
	var beta sql.NullFloat64
	if rec.Beta != nil {
		beta = sql.NullFloat64{Float64: *rec.Beta, Valid: true}
	}
	triggered := 0
	if rec.Triggered {
		triggered = 1
	}
	_, err = db.ExecContext(ctx, `INSERT INTO guardrail_audit
		(run_id, ticker, risk_appetite, beta, proposed_action, effective_action, triggered, reason, evaluated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Ticker, string(rec.RiskAppetite), beta,
		string(rec.ProposedAction), string(rec.EffectiveAction), triggered, rec.Reason,
		evaluatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert guardrail audit: %w", err)
	}
	return nil
}

// Query filters Recent; zero values match everything.
type Query struct {
	Ticker        string
	TriggeredOnly bool
	Limit         int
}

// Recent returns audit records newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]guardrail.Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var (
		where []string
		args  []any
	)
	if t := strings.TrimSpace(q.Ticker); t != "" {
		where = append(where, "ticker = ?")
		args = append(args, types.NormalizeTicker(t))
	}
	if q.TriggeredOnly {
		where = append(where, "triggered = 1")
	}
	query := `SELECT run_id, ticker, risk_appetite, beta, proposed_action, effective_action, triggered, reason, evaluated_at
		FROM guardrail_audit`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY evaluated_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []guardrail.Record
	for rows.Next() {
		var (
			rec                     guardrail.Record
			risk, proposed, applied string
			beta                    sql.NullFloat64
			triggered               int
			reason                  sql.NullString
			ts                      int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Ticker, &risk, &beta, &proposed, &applied, &triggered, &reason, &ts); err != nil {
			return nil, err
		}
		rec.RiskAppetite = types.RiskAppetite(risk)
		rec.ProposedAction = types.Action(proposed)
		rec.EffectiveAction = types.Action(applied)
		rec.Triggered = triggered == 1
		rec.Reason = reason.String
		rec.EvaluatedAt = time.UnixMilli(ts).UTC()
		if beta.Valid {
			v := beta.Float64
			rec.Beta = &v
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
