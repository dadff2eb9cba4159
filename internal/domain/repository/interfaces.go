package repository

import (
	"context"
	"time"

	"SignalScan/internal/domain/models"
)

type SignalStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, s *models.TradeSignal) error
	StoreBatch(ctx context.Context, signals []*models.TradeSignal) error
	QueryLatest(ctx context.Context, timeframe Timeframe, limit int) ([]*models.TradeSignal, error)
	// QueryBySymbol filters by an optional time range; zero bounds mean
	// unbounded.
	QueryBySymbol(ctx context.Context, symbol string, timeframe Timeframe, from, to time.Time, limit int) ([]*models.TradeSignal, error)
	Health(ctx context.Context) error // ping
	Close() error
}

type SignalPublisher interface {
	Publish(ctx context.Context, s *models.TradeSignal) error
	PublishBatch(ctx context.Context, signals []*models.TradeSignal) error
	Close() error
}

type Metrics interface {
	RecordSignal(timeframe, sentiment string)
	RecordSkip(reason string)
	RecordProviderRequest(status string)
	RecordPublished(backend, symbol string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordScanDuration(timeframe string, seconds float64)
	RecordLastStrength(symbol string, strength float64)
	RecordLastPrice(symbol string, price float64)
}
