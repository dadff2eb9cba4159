package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"SignalScan/internal/domain/models"
	domrepo "SignalScan/internal/domain/repository"
	pkgch "SignalScan/pkg/clickhouse"
	applogger "SignalScan/pkg/logger"
)

// ClickHouseSignalStore implements SignalStore backed by ClickHouse.
// Scalar columns serve filtering and ordering; the payload column keeps
// the full signal JSON so reads are lossless.
type ClickHouseSignalStore struct {
	ch    *pkgch.Client
	db    *sql.DB
	table string
	l     *applogger.Logger
}

// NewClickHouseSignalStore creates ClickHouse signal storage.
func NewClickHouseSignalStore(ch *pkgch.Client, database string) *ClickHouseSignalStore {
	return &ClickHouseSignalStore{
		ch:    ch,
		db:    ch.DB(),
		table: database + ".signals",
	}
}

// SetLogger injects a structured logger.
func (s *ClickHouseSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

// Init ensures the database and signals table exist (idempotent).
func (s *ClickHouseSignalStore) Init(ctx context.Context) error {
	database := strings.SplitN(s.table, ".", 2)[0]
	return s.ch.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (generated_at DateTime64(3), symbol String, timeframe String, price Float64, sentiment String, action String, strength Float64, confidence Float64, payload String) ENGINE=MergeTree ORDER BY (symbol, generated_at)", s.table),
	})
}

func (s *ClickHouseSignalStore) Store(ctx context.Context, sig *models.TradeSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	q := fmt.Sprintf("INSERT INTO %s (generated_at, symbol, timeframe, price, sentiment, action, strength, confidence, payload) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)", s.table)
	_, err = s.db.ExecContext(ctx, q,
		sig.GeneratedAt,
		sig.Symbol,
		sig.Timeframe,
		sig.Price,
		string(sig.Analysis.Sentiment),
		string(sig.Analysis.Action),
		sig.Analysis.Strength,
		sig.Analysis.Confidence,
		string(payload),
	)
	return err
}

func (s *ClickHouseSignalStore) StoreBatch(ctx context.Context, signals []*models.TradeSignal) error {
	if len(signals) == 0 {
		return nil
	}
	// Multi-row VALUES to reduce round-trips; signals are wider rows
	// than ticks so the chunk stays moderate.
	const chunkSize = 500
	for start := 0; start < len(signals); start += chunkSize {
		end := start + chunkSize
		if end > len(signals) {
			end = len(signals)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, sig := range signals[start:end] {
			if sig == nil || sig.Symbol == "" || sig.GeneratedAt.IsZero() {
				continue
			}
			payload, err := json.Marshal(sig)
			if err != nil {
				return fmt.Errorf("marshal signal: %w", err)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sig.GeneratedAt,
				sig.Symbol,
				sig.Timeframe,
				sig.Price,
				string(sig.Analysis.Sentiment),
				string(sig.Analysis.Action),
				sig.Analysis.Strength,
				sig.Analysis.Confidence,
				string(payload),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (generated_at, symbol, timeframe, price, sentiment, action, strength, confidence, payload) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *ClickHouseSignalStore) QueryLatest(ctx context.Context, timeframe domrepo.Timeframe, limit int) ([]*models.TradeSignal, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT payload FROM %s WHERE timeframe = ? ORDER BY generated_at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, string(timeframe), limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse latest_signals query error",
				applogger.String("timeframe", string(timeframe)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query latest signals: %w", err)
	}
	defer rows.Close()

	out, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse latest_signals ok",
			applogger.String("timeframe", string(timeframe)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *ClickHouseSignalStore) QueryBySymbol(ctx context.Context, symbol string, timeframe domrepo.Timeframe, from, to time.Time, limit int) ([]*models.TradeSignal, error) {
	start := time.Now()
	q := fmt.Sprintf("SELECT payload FROM %s WHERE symbol = ?", s.table)
	args := []interface{}{symbol}
	if timeframe != "" {
		q += " AND timeframe = ?"
		args = append(args, string(timeframe))
	}
	if !from.IsZero() {
		q += " AND generated_at >= ?"
		args = append(args, from)
	}
	if !to.IsZero() {
		q += " AND generated_at <= ?"
		args = append(args, to)
	}
	q += " ORDER BY generated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse symbol_signals query error",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", string(timeframe)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query symbol signals: %w", err)
	}
	defer rows.Close()

	out, err := scanSignals(rows)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse symbol_signals ok",
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func scanSignals(rows *sql.Rows) ([]*models.TradeSignal, error) {
	out := make([]*models.TradeSignal, 0, 32)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		var sig models.TradeSignal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			return nil, fmt.Errorf("decode signal payload: %w", err)
		}
		out = append(out, &sig)
	}
	return out, rows.Err()
}

func (s *ClickHouseSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSignalStore) Close() error {
	return nil // connection pool managed by pkg
}

var _ domrepo.SignalStore = (*ClickHouseSignalStore)(nil)
