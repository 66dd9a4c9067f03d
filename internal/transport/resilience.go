package transport

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"
)

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries           int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	BackoffMultiplier    float64
	Jitter               float64
	RetryableStatusCodes []int
}

// DefaultRetryConfig returns the retry defaults used when resilience is
// enabled without explicit tuning.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    200 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableStatusCodes: []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		},
	}
}

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the circuit breaker.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
	}
}

// ErrBreakerOpen is returned while the breaker is rejecting requests.
var ErrBreakerOpen = errors.New("transport: circuit breaker is open")

// breaker implements a minimal circuit breaker over consecutive
// request outcomes.
type breaker struct {
	mu sync.Mutex

	cfg       BreakerConfig
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
}

func newBreaker(cfg BreakerConfig) *breaker {
	return &breaker{cfg: cfg, state: BreakerClosed}
}

func (b *breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if time.Since(b.openedAt) > b.cfg.OpenTimeout {
			b.state = BreakerHalfOpen
			b.successes = 0
			return nil
		}
		return ErrBreakerOpen
	}
	return nil
}

func (b *breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures = 0
	case BreakerHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = BreakerClosed
			b.failures = 0
		}
	}
}

func (b *breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = BreakerOpen
			b.openedAt = time.Now()
		}
	case BreakerHalfOpen:
		b.state = BreakerOpen
		b.openedAt = time.Now()
	}
}

func (b *breaker) current() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// resilientDoer wraps an http.Client with retry and circuit breaking.
// GET-only requests are retried; the backend is not idempotent for
// writes, so non-GET requests pass through on the first attempt.
type resilientDoer struct {
	client  *http.Client
	retry   RetryConfig
	breaker *breaker
}

func newResilientDoer(client *http.Client, retry RetryConfig, brk BreakerConfig) *resilientDoer {
	return &resilientDoer{
		client:  client,
		retry:   retry,
		breaker: newBreaker(brk),
	}
}

func (d *resilientDoer) Do(req *http.Request) (*http.Response, error) {
	if err := d.breaker.allow(); err != nil {
		return nil, err
	}

	maxAttempts := 1
	if req.Method == http.MethodGet {
		maxAttempts = d.retry.MaxRetries + 1
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-req.Context().Done():
				return nil, req.Context().Err()
			case <-time.After(d.backoff(attempt)):
			}
			req = req.Clone(req.Context())
		}

		resp, lastErr = d.client.Do(req)
		if lastErr != nil {
			if retryableNetError(lastErr) {
				continue
			}
			d.breaker.recordFailure()
			return nil, lastErr
		}

		if d.retryableStatus(resp.StatusCode) && attempt < maxAttempts-1 {
			resp.Body.Close()
			continue
		}

		if resp.StatusCode >= 500 {
			d.breaker.recordFailure()
		} else {
			d.breaker.recordSuccess()
		}
		return resp, nil
	}

	d.breaker.recordFailure()
	return resp, lastErr
}

func (d *resilientDoer) backoff(attempt int) time.Duration {
	backoff := float64(d.retry.InitialBackoff) * math.Pow(d.retry.BackoffMultiplier, float64(attempt-1))
	if backoff > float64(d.retry.MaxBackoff) {
		backoff = float64(d.retry.MaxBackoff)
	}
	if d.retry.Jitter > 0 {
		backoff += backoff * d.retry.Jitter * (rand.Float64()*2 - 1)
	}
	return time.Duration(backoff)
}

func (d *resilientDoer) retryableStatus(code int) bool {
	for _, c := range d.retry.RetryableStatusCodes {
		if code == c {
			return true
		}
	}
	return false
}

func retryableNetError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}
