package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
	dservice "SignalScan/internal/domain/service"
	mid "SignalScan/internal/middleware"
	"SignalScan/internal/service/taapi"
	"SignalScan/pkg/logger"
)

// ErrScanInProgress rejects overlapping scans. The rate-limit window
// accounting assumes a single sequential caller per scan.
var ErrScanInProgress = errors.New("scan already in progress")

// QuoteReader supplies the latest live quote when the provider bundle
// carries no price snapshot.
type QuoteReader interface {
	Latest(symbol string) (*models.Quote, bool)
}

// ScanOptions narrows one scan run.
type ScanOptions struct {
	Symbols     []string
	Timeframe   drepo.Timeframe
	MinStrength float64 // negative means configured default
	TopResults  int     // zero or negative means configured default
	MaxStocks   int     // zero or negative means configured default
}

// DefaultScanOptions returns options that fall back to the configured
// defaults for every knob.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{MinStrength: -1}
}

// ScanOrchestrator walks the symbol universe in sequential batches:
// fetch indicators, aggregate votes, compute trade levels. A single
// symbol's failure becomes a skip record and never aborts the scan.
type ScanOrchestrator struct {
	provider dservice.IndicatorProvider
	agg      *SignalAggregator
	levels   *LevelCalculator
	quotes   QuoteReader
	pipe     *mid.PublishPipeline
	metrics  drepo.Metrics
	log      *logger.Logger

	symbols     []string
	maxStocks   int
	timeframe   drepo.Timeframe
	batchSize   int
	batchDelay  time.Duration
	minStrength float64
	topResults  int

	mu      sync.Mutex
	running atomic.Bool

	reportMu   sync.RWMutex
	lastReport *models.ScanReport
}

// NewScanOrchestrator creates the orchestrator. quotes and pipe may be
// nil when live quotes or publishing are disabled.
func NewScanOrchestrator(
	provider dservice.IndicatorProvider,
	agg *SignalAggregator,
	levels *LevelCalculator,
	quotes QuoteReader,
	pipe *mid.PublishPipeline,
	metrics drepo.Metrics,
	log *logger.Logger,
	symbols []string,
	maxStocks int,
	timeframe drepo.Timeframe,
	batchSize int,
	batchDelay time.Duration,
	minStrength float64,
	topResults int,
) *ScanOrchestrator {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ScanOrchestrator{
		provider:    provider,
		agg:         agg,
		levels:      levels,
		quotes:      quotes,
		pipe:        pipe,
		metrics:     metrics,
		log:         log,
		symbols:     symbols,
		maxStocks:   maxStocks,
		timeframe:   timeframe,
		batchSize:   batchSize,
		batchDelay:  batchDelay,
		minStrength: minStrength,
		topResults:  topResults,
	}
}

// Running reports whether a scan is currently executing.
func (o *ScanOrchestrator) Running() bool { return o.running.Load() }

// Universe returns the configured symbol list.
func (o *ScanOrchestrator) Universe() []string { return o.symbols }

// Scan runs one full pass over the symbol universe. Concurrent callers
// get ErrScanInProgress instead of queueing. A context error aborts the
// scan between symbols; per-symbol failures are recorded as skips.
func (o *ScanOrchestrator) Scan(ctx context.Context, opts ScanOptions) (*models.ScanReport, error) {
	if !o.mu.TryLock() {
		return nil, ErrScanInProgress
	}
	defer o.mu.Unlock()
	o.running.Store(true)
	defer o.running.Store(false)

	symbols := opts.Symbols
	if len(symbols) == 0 {
		symbols = o.symbols
	}
	maxStocks := opts.MaxStocks
	if maxStocks <= 0 {
		maxStocks = o.maxStocks
	}
	if maxStocks > 0 && len(symbols) > maxStocks {
		o.log.Info("symbol universe capped",
			logger.Int("requested", len(symbols)),
			logger.Int("max_stocks", maxStocks),
		)
		symbols = symbols[:maxStocks]
	}
	tf := opts.Timeframe
	if !drepo.IsValidTimeframe(tf) {
		tf = o.timeframe
	}
	minStrength := opts.MinStrength
	if minStrength < 0 {
		minStrength = o.minStrength
	}
	topN := opts.TopResults
	if topN <= 0 {
		topN = o.topResults
	}

	started := time.Now()
	requestsBefore := o.provider.RequestsUsed()
	report := &models.ScanReport{
		Timeframe: string(tf),
		StartedAt: started.UTC(),
		Results:   make([]models.TradeSignal, 0, len(symbols)),
	}

	o.log.Info("scan started",
		logger.Int("symbols", len(symbols)),
		logger.String("timeframe", string(tf)),
	)

	for start := 0; start < len(symbols); start += o.batchSize {
		if start > 0 && o.batchDelay > 0 {
			select {
			case <-time.After(o.batchDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		end := min(start+o.batchSize, len(symbols))
		for _, symbol := range symbols[start:end] {
			if err := o.scanSymbol(ctx, symbol, tf, minStrength, report); err != nil {
				return nil, err
			}
		}
	}

	report.Scanned = len(symbols)
	report.RequestCount = o.provider.RequestsUsed() - requestsBefore
	report.Elapsed = time.Since(started)

	o.rank(report, minStrength, topN)

	o.metrics.RecordScanDuration(string(tf), report.Elapsed.Seconds())
	o.log.Info("scan finished",
		logger.Int("results", len(report.Results)),
		logger.Int("skipped", len(report.Skipped)),
		logger.Int("requests", report.RequestCount),
		logger.Duration("elapsed_ms", report.Elapsed),
	)

	o.reportMu.Lock()
	o.lastReport = report
	o.reportMu.Unlock()

	return report, nil
}

// LastReport returns the most recent completed scan report, nil before
// the first scan finishes.
func (o *ScanOrchestrator) LastReport() *models.ScanReport {
	o.reportMu.RLock()
	defer o.reportMu.RUnlock()
	return o.lastReport
}

// scanSymbol analyzes one symbol. Only context errors propagate.
func (o *ScanOrchestrator) scanSymbol(ctx context.Context, symbol string, tf drepo.Timeframe, minStrength float64, report *models.ScanReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bundle, err := o.provider.FetchIndicators(ctx, symbol, tf)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason, detail := classifySkip(err)
		report.Skipped = append(report.Skipped, models.SkippedSymbol{Symbol: symbol, Reason: reason, Detail: detail})
		o.metrics.RecordSkip(string(reason))
		o.log.Warn("symbol skipped",
			logger.String("symbol", symbol),
			logger.String("reason", string(reason)),
			logger.Error(err),
		)
		return nil
	}

	price, ok := o.referencePrice(bundle)
	if !ok {
		report.Skipped = append(report.Skipped, models.SkippedSymbol{Symbol: symbol, Reason: models.SkipIncompleteData, Detail: "no reference price"})
		o.metrics.RecordSkip(string(models.SkipIncompleteData))
		return nil
	}

	analysis := o.agg.Aggregate(bundle, price)
	o.levels.ComputeLevels(analysis, bundle, price, tf)

	signal := models.TradeSignal{
		Symbol:      symbol,
		Timeframe:   string(tf),
		Price:       price,
		Analysis:    *analysis,
		Indicators:  *bundle,
		GeneratedAt: time.Now().UTC(),
	}
	report.Results = append(report.Results, signal)

	o.metrics.RecordSignal(string(tf), string(analysis.Sentiment))
	o.metrics.RecordLastStrength(symbol, analysis.Strength)

	if o.pipe != nil && analysis.Strength >= minStrength {
		if err := o.pipe.Process(ctx, &signal); err != nil {
			o.log.Warn("signal publish failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	return nil
}

// referencePrice prefers the provider's price snapshot, then the latest
// live quote.
func (o *ScanOrchestrator) referencePrice(b *models.IndicatorBundle) (float64, bool) {
	if b.Price != nil && *b.Price > 0 {
		return *b.Price, true
	}
	if o.quotes != nil {
		if q, ok := o.quotes.Latest(b.Symbol); ok && q.Price > 0 {
			return q.Price, true
		}
	}
	return 0, false
}

// rank filters by strength, sorts descending and truncates to topN.
// The sort is stable so equal strengths keep scan order.
func (o *ScanOrchestrator) rank(report *models.ScanReport, minStrength float64, topN int) {
	filtered := report.Results[:0]
	for _, s := range report.Results {
		if s.Analysis.Strength >= minStrength {
			filtered = append(filtered, s)
		}
	}
	report.Results = filtered

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Analysis.Strength > report.Results[j].Analysis.Strength
	})

	if topN > 0 && len(report.Results) > topN {
		report.Results = report.Results[:topN]
	}
}

func classifySkip(err error) (models.SkipReason, string) {
	var fe *taapi.FetchError
	if errors.As(err, &fe) {
		switch {
		case taapi.IsRateLimited(fe.Err):
			return models.SkipRateLimited, fe.Error()
		case taapi.IsTimeout(fe.Err):
			return models.SkipTimeout, fe.Error()
		default:
			return models.SkipProviderError, fe.Error()
		}
	}
	return models.SkipProviderError, err.Error()
}
