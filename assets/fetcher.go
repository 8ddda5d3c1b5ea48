package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/remeh/sizedwaitgroup"
	"golang.org/x/time/rate"
)

// RequestID identifies one outstanding fetch.
type RequestID string

// Request describes a GET to start.
type Request struct {
	URL string
}

// FetchStatus is the completion state of a request.
type FetchStatus uint8

const (
	FetchPending FetchStatus = iota
	FetchReady
	FetchFailed
)

// Result is what Poll reports for a request. Data is set when Status is
// FetchReady and Err when it is FetchFailed.
type Result struct {
	Status FetchStatus
	Data   []byte
	Err    error
}

// Fetcher starts background fetches and reports their completion. Start and
// Poll never block. A finished result is handed out once; polling it again
// reports an unknown request.
type Fetcher interface {
	Start(Request) RequestID
	Poll(RequestID) Result
	Close()
}

// ErrUnknownRequest is reported by Poll for ids it does not hold.
var ErrUnknownRequest = errors.New("assets: unknown request")

// FetcherConfig tunes an HTTPFetcher.
type FetcherConfig struct {
	Timeout           time.Duration
	Concurrency       int
	RequestsPerSecond float64
	Burst             int
	MaxBodyBytes      int64
	UserAgent         string
	Client            *http.Client
}

// DefaultFetcherConfig returns the stock fetcher settings.
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:           10 * time.Second,
		Concurrency:       8,
		RequestsPerSecond: 50,
		Burst:             16,
		MaxBodyBytes:      32 << 20,
		UserAgent:         "cyberia-client",
	}
}

// HTTPFetcher runs each request on its own goroutine. Concurrency is bounded
// by a sized wait group and request starts are paced by a token bucket.
type HTTPFetcher struct {
	cfg     FetcherConfig
	client  *http.Client
	limiter *rate.Limiter
	swg     sizedwaitgroup.SizedWaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	token   string
	closed  bool
	pending map[RequestID]*Result
}

// NewHTTPFetcher returns a fetcher using cfg. Zero fields take defaults.
func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	def := DefaultFetcherConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPFetcher{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		swg:     sizedwaitgroup.New(cfg.Concurrency),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[RequestID]*Result),
	}
}

// SetToken sets the bearer token attached to later requests.
func (f *HTTPFetcher) SetToken(token string) {
	f.mu.Lock()
	f.token = token
	f.mu.Unlock()
}

// Start queues req and returns its id immediately.
func (f *HTTPFetcher) Start(req Request) RequestID {
	id := RequestID(uuid.NewString())
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		f.pending[id] = &Result{Status: FetchFailed, Err: context.Canceled}
		return id
	}
	f.pending[id] = &Result{Status: FetchPending}
	token := f.token
	go f.run(id, req, token)
	return id
}

func (f *HTTPFetcher) run(id RequestID, req Request, token string) {
	data, err := f.get(req.URL, token)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	r, ok := f.pending[id]
	if !ok {
		return
	}
	if err != nil {
		r.Status, r.Err = FetchFailed, err
		return
	}
	r.Status, r.Data = FetchReady, data
}

func (f *HTTPFetcher) get(url, token string) ([]byte, error) {
	f.swg.Add()
	defer f.swg.Done()
	if err := f.limiter.Wait(f.ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(f.ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %v: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %v: %v", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %v: %w", url, err)
	}
	if int64(len(data)) > f.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("GET %v: body exceeds %v", url, humanize.Bytes(uint64(f.cfg.MaxBodyBytes)))
	}
	return data, nil
}

// Poll reports the state of id. Finished results are removed.
func (f *HTTPFetcher) Poll(id RequestID) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pending[id]
	if !ok {
		return Result{Status: FetchFailed, Err: ErrUnknownRequest}
	}
	if r.Status == FetchPending {
		return Result{Status: FetchPending}
	}
	delete(f.pending, id)
	return *r
}

// Outstanding returns the number of requests not yet collected.
func (f *HTTPFetcher) Outstanding() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Close cancels in-flight requests. Their responses are discarded.
func (f *HTTPFetcher) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.pending = make(map[RequestID]*Result)
	f.mu.Unlock()
	f.cancel()
}
