package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AirLink-Net/client_core/internal/logging"
)

// DefaultMinVisibleDuration is the floor applied to perceived request
// latency when a request does not override it. Loading UI driven by the
// notifier never flashes faster than this.
const DefaultMinVisibleDuration = 600 * time.Millisecond

// SessionAccess is the slice of the session store the transport needs:
// the current bearer token, and full invalidation on 401.
type SessionAccess interface {
	Token() string
	ClearAll() error
}

// LoadingNotifier receives loading-indicator lifecycle events. Begin and
// End are always paired; End fires only after the visible-latency floor
// has elapsed.
type LoadingNotifier interface {
	Begin(label string)
	End()
}

// Request describes one call against the backend.
type Request struct {
	Path   string
	Method string
	// Body is JSON-marshaled when non-nil.
	Body any
	// RequiresAuth attaches the bearer token when one is present. The
	// request is still sent anonymously when no token exists; matching
	// this flag to the endpoint's real requirement is the caller's job.
	RequiresAuth bool
	// MinVisibleDuration overrides the client default when > 0.
	MinVisibleDuration time.Duration
	LoadingLabel       string
	Envelope           EnvelopeKind
}

// Response is a decoded successful call.
type Response struct {
	StatusCode int
	// Data is the envelope payload. Nil when the envelope carried none.
	Data   json.RawMessage
	Header http.Header
}

// DecodeData unmarshals the payload into v.
func (r *Response) DecodeData(v any) error {
	if r.Data == nil {
		return fmt.Errorf("transport: response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("transport: decode data: %w", err)
	}
	return nil
}

// Config configures the transport client.
type Config struct {
	// APIBaseURL is the primary backend base URL. Required.
	APIBaseURL string
	// InvoiceBaseURL is the distinct host for the invoice service.
	// Routes matching InvoiceRoutePrefixes resolve against it and are
	// never prefixed with APIBaseURL.
	InvoiceBaseURL       string
	InvoiceRoutePrefixes []string

	// Session supplies the bearer token and is cleared on 401. Required.
	Session SessionAccess

	HTTPClient         *http.Client
	Timeout            time.Duration
	MinVisibleDuration time.Duration
	Notifier           LoadingNotifier
	Logger             logging.Logger
	Metrics            *Metrics

	// EnableResilience turns on retry and circuit breaking.
	EnableResilience bool
	Retry            RetryConfig
	Breaker          BreakerConfig

	// RateLimitRPS caps outbound request rate when > 0.
	RateLimitRPS   float64
	RateLimitBurst int
}

// doer abstracts http.Client so the resilient wrapper can slot in.
type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues requests against the backend.
type Client struct {
	apiBase         string
	invoiceBase     string
	invoicePrefixes []string
	session         SessionAccess
	httpDoer        doer
	minVisible      time.Duration
	notifier        LoadingNotifier
	log             logging.Logger
	metrics         *Metrics
	limiter         *rate.Limiter
}

// NewClient creates a transport client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("transport: APIBaseURL is required")
	}
	if cfg.Session == nil {
		return nil, fmt.Errorf("transport: Session is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var d doer = httpClient
	if cfg.EnableResilience {
		retry := cfg.Retry
		if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
			retry = DefaultRetryConfig()
		}
		brk := cfg.Breaker
		if brk.FailureThreshold == 0 {
			brk = DefaultBreakerConfig()
		}
		d = newResilientDoer(httpClient, retry, brk)
	}

	minVisible := cfg.MinVisibleDuration
	if minVisible == 0 {
		minVisible = DefaultMinVisibleDuration
	}

	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		apiBase:         strings.TrimSuffix(cfg.APIBaseURL, "/"),
		invoiceBase:     strings.TrimSuffix(cfg.InvoiceBaseURL, "/"),
		invoicePrefixes: cfg.InvoiceRoutePrefixes,
		session:         cfg.Session,
		httpDoer:        d,
		minVisible:      minVisible,
		notifier:        cfg.Notifier,
		log:             log,
		metrics:         cfg.Metrics,
		limiter:         limiter,
	}, nil
}

// Send issues one request and classifies the outcome. Every failure is
// a *Error; the response is only non-nil on success. The visible-latency
// floor applies to success and failure alike.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	if err := validateMethod(req.Method); err != nil {
		return nil, err
	}

	minVisible := req.MinVisibleDuration
	if minVisible == 0 {
		minVisible = c.minVisible
	}

	if c.notifier != nil {
		c.notifier.Begin(req.LoadingLabel)
	}
	start := time.Now()

	resp, err := c.send(ctx, req)
	elapsed := time.Since(start)

	outcome := Kind("")
	if err != nil {
		outcome = KindOf(err)
	}
	c.metrics.observe(req.Method, outcome, elapsed)

	// Two-phase wait: the request already ran; now hold the remainder
	// of the floor before releasing the loading indicator.
	if remaining := minVisible - elapsed; remaining > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}
	if c.notifier != nil {
		c.notifier.End()
	}
	return resp, err
}

func (c *Client) send(ctx context.Context, req Request) (*Response, error) {
	endpoint := c.resolve(req.Path)

	var bodyReader io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindNetwork, Message: "marshal request body", Err: err}
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, endpoint, bodyReader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: "create request", Err: err}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.RequiresAuth {
		if token := c.session.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, networkError(err)
		}
	}

	httpResp, err := c.httpDoer.Do(httpReq)
	if err != nil {
		c.log.Warn("request failed", "method", req.Method, "path", req.Path, "error", err)
		return nil, networkError(err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 8<<20))
	if err != nil {
		return nil, networkError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		terr := statusError(httpResp.StatusCode)
		if terr.Kind == KindAuthExpired {
			// A stale token must not be retried silently anywhere, so
			// the session dies here, not in the caller.
			if clearErr := c.session.ClearAll(); clearErr != nil {
				c.log.Error("clear session after 401", "error", clearErr)
			}
			c.log.Warn("auth expired, session cleared", "path", req.Path)
		}
		return nil, terr
	}

	data, terr := decodeEnvelope(req.Envelope, body)
	if terr != nil {
		c.log.Debug("business failure", "path", req.Path, "message", terr.Message)
		return nil, terr
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Data:       data,
		Header:     httpResp.Header,
	}, nil
}

// resolve maps a server-relative path to a full endpoint. Invoice-service
// routes go to the invoice host; everything else to the API base.
func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	for _, prefix := range c.invoicePrefixes {
		if strings.HasPrefix(path, prefix) && c.invoiceBase != "" {
			return c.invoiceBase + path
		}
	}
	return c.apiBase + path
}

func validateMethod(method string) *Error {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return nil
	default:
		return &Error{Kind: KindHTTP, Message: fmt.Sprintf("unsupported method %q", method)}
	}
}
