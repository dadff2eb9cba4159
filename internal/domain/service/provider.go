package service

import (
	"context"

	"SignalScan/internal/domain/models"
	"SignalScan/internal/domain/repository"
)

// IndicatorProvider fetches the full indicator bundle for one symbol.
// Implementations own retry and rate-limit handling; a returned error
// means the symbol is not analyzable this scan.
type IndicatorProvider interface {
	FetchIndicators(ctx context.Context, symbol string, tf repository.Timeframe) (*models.IndicatorBundle, error)
	RequestsUsed() int
}

// QuoteSource streams live trade ticks for subscribed symbols.
type QuoteSource interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}
