package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SignalScan/internal/domain/models"
	drepo "SignalScan/internal/domain/repository"
	mid "SignalScan/internal/middleware"
	"SignalScan/internal/service/taapi"
	"SignalScan/pkg/logger"
)

type fakeProvider struct {
	mu      sync.Mutex
	bundles map[string]*models.IndicatorBundle
	errs    map[string]error
	calls   int
}

func (f *fakeProvider) FetchIndicators(ctx context.Context, symbol string, tf drepo.Timeframe) (*models.IndicatorBundle, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	b, ok := f.bundles[symbol]
	if !ok {
		return nil, fmt.Errorf("no bundle for %s", symbol)
	}
	return b, nil
}

func (f *fakeProvider) RequestsUsed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeQuotes map[string]*models.Quote

func (f fakeQuotes) Latest(symbol string) (*models.Quote, bool) {
	q, ok := f[symbol]
	return q, ok
}

type captureMetrics struct {
	mu    sync.Mutex
	skips map[string]int
}

func newCaptureMetrics() *captureMetrics {
	return &captureMetrics{skips: make(map[string]int)}
}

func (m *captureMetrics) RecordSkip(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skips[reason]++
}

func (m *captureMetrics) skipCount(reason string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.skips[reason]
}

func (m *captureMetrics) RecordSignal(string, string)        {}
func (m *captureMetrics) RecordProviderRequest(string)       {}
func (m *captureMetrics) RecordPublished(string, string)     {}
func (m *captureMetrics) RecordError(string)                 {}
func (m *captureMetrics) RecordLatency(string, float64)      {}
func (m *captureMetrics) RecordScanDuration(string, float64) {}
func (m *captureMetrics) RecordLastStrength(string, float64) {}
func (m *captureMetrics) RecordLastPrice(string, float64)    {}

type captureProc struct {
	mu      sync.Mutex
	symbols []string
}

func (p *captureProc) Process(ctx context.Context, s *models.TradeSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols = append(p.symbols, s.Symbol)
	return nil
}

func (p *captureProc) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.symbols...)
}

// strongBundle aggregates to a 4.375-strength buy.
func strongBundle(symbol string) *models.IndicatorBundle {
	return &models.IndicatorBundle{
		Symbol:    symbol,
		RSI:       f64(20),
		MACD:      &models.MACDValue{Line: 1.2, Signal: 0.8, Histogram: 0.4},
		EMA50:     f64(90),
		EMA200:    f64(85),
		Bollinger: &models.BollingerBands{Upper: 112, Middle: 106, Lower: 100},
		Price:     f64(95),
	}
}

// mildBundle aggregates to a 2.5-strength buy.
func mildBundle(symbol string) *models.IndicatorBundle {
	return &models.IndicatorBundle{
		Symbol: symbol,
		RSI:    f64(20),
		MACD:   &models.MACDValue{Line: -1.0, Signal: -0.5, Histogram: -0.2},
		Price:  f64(100),
	}
}

// flatBundle aggregates to a zero-strength hold.
func flatBundle(symbol string) *models.IndicatorBundle {
	return &models.IndicatorBundle{
		Symbol: symbol,
		RSI:    f64(50),
		Price:  f64(100),
	}
}

func testOrchestrator(t *testing.T, provider *fakeProvider, quotes QuoteReader, pipe *mid.PublishPipeline, m drepo.Metrics, symbols []string) *ScanOrchestrator {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return NewScanOrchestrator(
		provider,
		NewSignalAggregator(DefaultWeights()),
		NewLevelCalculator(),
		quotes,
		pipe,
		m,
		log,
		symbols,
		0,
		drepo.TFMid,
		10,
		0,
		0,
		0,
	)
}

func TestScanRanksResults(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{
		"AAA": strongBundle("AAA"),
		"BBB": flatBundle("BBB"),
		"CCC": mildBundle("CCC"),
	}}
	o := testOrchestrator(t, provider, nil, nil, newCaptureMetrics(), []string{"BBB", "AAA", "CCC"})

	report, err := o.Scan(context.Background(), DefaultScanOptions())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if report.Scanned != 3 {
		t.Errorf("expected 3 scanned, got %d", report.Scanned)
	}
	if report.RequestCount != 3 {
		t.Errorf("expected 3 requests, got %d", report.RequestCount)
	}
	if len(report.Skipped) != 0 {
		t.Errorf("expected no skips, got %+v", report.Skipped)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}

	// descending by strength
	want := []string{"AAA", "CCC", "BBB"}
	for i, symbol := range want {
		if report.Results[i].Symbol != symbol {
			t.Errorf("position %d: expected %s, got %s", i, symbol, report.Results[i].Symbol)
		}
	}

	if report.Timeframe != string(drepo.TFMid) {
		t.Errorf("expected timeframe %s, got %s", drepo.TFMid, report.Timeframe)
	}
	if report.Results[0].Price != 95 {
		t.Errorf("expected price from the provider snapshot, got %v", report.Results[0].Price)
	}
	if report.Results[0].GeneratedAt.IsZero() || report.StartedAt.IsZero() {
		t.Error("expected timestamps on report and signals")
	}
}

func TestScanSkipsFailedSymbols(t *testing.T) {
	provider := &fakeProvider{
		bundles: map[string]*models.IndicatorBundle{"OK": strongBundle("OK")},
		errs: map[string]error{
			"RL": &taapi.FetchError{Symbol: "RL", Attempts: 3, Err: &taapi.ProviderError{Status: 429, Message: "rate limited"}},
			"TO": &taapi.FetchError{Symbol: "TO", Attempts: 3, Err: context.DeadlineExceeded},
			"PE": errors.New("connection reset"),
		},
	}
	m := newCaptureMetrics()
	o := testOrchestrator(t, provider, nil, nil, m, []string{"RL", "TO", "PE", "OK"})

	report, err := o.Scan(context.Background(), DefaultScanOptions())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if report.Scanned != 4 {
		t.Errorf("expected 4 scanned, got %d", report.Scanned)
	}
	if len(report.Results) != 1 || report.Results[0].Symbol != "OK" {
		t.Fatalf("expected only OK to survive, got %+v", report.Results)
	}
	if len(report.Skipped) != 3 {
		t.Fatalf("expected 3 skips, got %+v", report.Skipped)
	}

	reasons := make(map[string]models.SkipReason, len(report.Skipped))
	for _, s := range report.Skipped {
		if s.Detail == "" {
			t.Errorf("skip %s has no detail", s.Symbol)
		}
		reasons[s.Symbol] = s.Reason
	}
	if reasons["RL"] != models.SkipRateLimited {
		t.Errorf("RL: expected rate_limited, got %s", reasons["RL"])
	}
	if reasons["TO"] != models.SkipTimeout {
		t.Errorf("TO: expected timeout, got %s", reasons["TO"])
	}
	if reasons["PE"] != models.SkipProviderError {
		t.Errorf("PE: expected provider_error, got %s", reasons["PE"])
	}

	for _, reason := range []models.SkipReason{models.SkipRateLimited, models.SkipTimeout, models.SkipProviderError} {
		if n := m.skipCount(string(reason)); n != 1 {
			t.Errorf("expected 1 recorded %s skip, got %d", reason, n)
		}
	}
}

func TestScanFallsBackToLiveQuote(t *testing.T) {
	noPrice := strongBundle("NP")
	noPrice.Price = nil
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{"NP": noPrice}}

	// without a quote source the symbol is skipped
	m := newCaptureMetrics()
	o := testOrchestrator(t, provider, nil, nil, m, []string{"NP"})
	report, err := o.Scan(context.Background(), DefaultScanOptions())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(report.Results) != 0 || len(report.Skipped) != 1 {
		t.Fatalf("expected one skip, got %+v", report)
	}
	if report.Skipped[0].Reason != models.SkipIncompleteData {
		t.Errorf("expected incomplete_data, got %s", report.Skipped[0].Reason)
	}
	if m.skipCount(string(models.SkipIncompleteData)) != 1 {
		t.Error("expected an incomplete_data skip recorded")
	}

	// a live quote fills the gap
	quotes := fakeQuotes{"NP": &models.Quote{Symbol: "NP", Price: 42, At: time.Now()}}
	o = testOrchestrator(t, provider, quotes, nil, newCaptureMetrics(), []string{"NP"})
	report, err = o.Scan(context.Background(), DefaultScanOptions())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(report.Results) != 1 {
		t.Fatalf("expected one result, got %+v", report)
	}
	if report.Results[0].Price != 42 {
		t.Errorf("expected quote price 42, got %v", report.Results[0].Price)
	}
}

func TestScanOptionsFilterAndTruncate(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{
		"AAA": strongBundle("AAA"),
		"BBB": flatBundle("BBB"),
		"CCC": mildBundle("CCC"),
	}}
	proc := &captureProc{}
	pipe := mid.NewPublishPipeline(proc, newCaptureMetrics(), mid.WithMinGap(0))
	o := testOrchestrator(t, provider, nil, pipe, newCaptureMetrics(), []string{"AAA", "BBB", "CCC"})

	report, err := o.Scan(context.Background(), ScanOptions{MinStrength: 3, TopResults: 1})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	// every symbol is still fetched; the filter shapes the report only
	if report.RequestCount != 3 || report.Scanned != 3 {
		t.Errorf("expected all symbols fetched, got %d/%d", report.RequestCount, report.Scanned)
	}
	if len(report.Results) != 1 || report.Results[0].Symbol != "AAA" {
		t.Fatalf("expected only AAA above strength 3, got %+v", report.Results)
	}

	// publishing honors the same threshold
	if got := proc.published(); len(got) != 1 || got[0] != "AAA" {
		t.Errorf("expected AAA published, got %v", got)
	}
}

func TestScanOverridesSymbols(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{
		"AAA": strongBundle("AAA"),
		"BBB": flatBundle("BBB"),
	}}
	o := testOrchestrator(t, provider, nil, nil, newCaptureMetrics(), []string{"AAA", "BBB"})

	report, err := o.Scan(context.Background(), ScanOptions{Symbols: []string{"AAA"}, MinStrength: -1})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Scanned != 1 || report.RequestCount != 1 {
		t.Errorf("expected a single-symbol scan, got %d/%d", report.Scanned, report.RequestCount)
	}
	if len(report.Results) != 1 || report.Results[0].Symbol != "AAA" {
		t.Fatalf("expected AAA only, got %+v", report.Results)
	}
}

func TestScanCapsUniverse(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{
		"AAA": strongBundle("AAA"),
		"BBB": flatBundle("BBB"),
		"CCC": mildBundle("CCC"),
	}}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	o := NewScanOrchestrator(provider, NewSignalAggregator(DefaultWeights()), NewLevelCalculator(),
		nil, nil, newCaptureMetrics(), log, []string{"AAA", "BBB", "CCC"}, 2, drepo.TFMid, 10, 0, 0, 0)

	report, err := o.Scan(context.Background(), DefaultScanOptions())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Scanned != 2 || report.RequestCount != 2 {
		t.Errorf("expected cap at 2 symbols, got %d/%d", report.Scanned, report.RequestCount)
	}
	for _, s := range report.Results {
		if s.Symbol == "CCC" {
			t.Error("CCC should be beyond the cap")
		}
	}

	// a per-scan override tightens the cap further
	report, err = o.Scan(context.Background(), ScanOptions{MinStrength: -1, MaxStocks: 1})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Scanned != 1 {
		t.Errorf("expected cap at 1 symbol, got %d", report.Scanned)
	}
	if len(report.Results) != 1 || report.Results[0].Symbol != "AAA" {
		t.Fatalf("expected AAA only, got %+v", report.Results)
	}
}

func TestScanRequestCountIsPerScan(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{
		"AAA": strongBundle("AAA"),
		"BBB": flatBundle("BBB"),
	}}
	o := testOrchestrator(t, provider, nil, nil, newCaptureMetrics(), []string{"AAA", "BBB"})

	for i := 0; i < 2; i++ {
		report, err := o.Scan(context.Background(), DefaultScanOptions())
		if err != nil {
			t.Fatalf("scan %d: %v", i, err)
		}
		if report.RequestCount != 2 {
			t.Errorf("scan %d: expected request count 2, got %d", i, report.RequestCount)
		}
	}
}

type blockingProvider struct {
	release chan struct{}
	bundle  *models.IndicatorBundle
}

func (b *blockingProvider) FetchIndicators(ctx context.Context, symbol string, tf drepo.Timeframe) (*models.IndicatorBundle, error) {
	<-b.release
	return b.bundle, nil
}

func (b *blockingProvider) RequestsUsed() int { return 0 }

func TestScanRejectsConcurrent(t *testing.T) {
	provider := &blockingProvider{release: make(chan struct{}), bundle: strongBundle("AAA")}
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	o := NewScanOrchestrator(provider, NewSignalAggregator(DefaultWeights()), NewLevelCalculator(),
		nil, nil, newCaptureMetrics(), log, []string{"AAA"}, 0, drepo.TFMid, 10, 0, 0, 0)

	done := make(chan error, 1)
	go func() {
		_, err := o.Scan(context.Background(), DefaultScanOptions())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !o.Running() {
		if time.Now().After(deadline) {
			t.Fatal("scan never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := o.Scan(context.Background(), DefaultScanOptions()); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}

	close(provider.release)
	if err := <-done; err != nil {
		t.Fatalf("first scan failed: %v", err)
	}
	if o.Running() {
		t.Error("running flag stuck after scan")
	}
}

func TestScanAbortsOnCancelledContext(t *testing.T) {
	provider := &fakeProvider{bundles: map[string]*models.IndicatorBundle{"AAA": strongBundle("AAA")}}
	o := testOrchestrator(t, provider, nil, nil, newCaptureMetrics(), []string{"AAA"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := o.Scan(ctx, DefaultScanOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
