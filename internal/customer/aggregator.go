package customer

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/AirLink-Net/client_core/internal/logging"
	"github.com/AirLink-Net/client_core/internal/transport"
)

// Backend routes consumed by the aggregator.
const (
	pathCustomerBasic    = "/api/customer/by-device-code"
	pathCustomerComplete = "/api/customer/package/by-device-no"
)

// DefaultMemoTTL bounds how long an aggregation result is reused for
// the same device code before refetching.
const DefaultMemoTTL = 30 * time.Second

// Sender is the transport surface the aggregator depends on.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
}

type memoEntry struct {
	profile   *Profile
	expiresAt time.Time
}

// Aggregator fetches and merges the basic and complete customer
// endpoints.
type Aggregator struct {
	client Sender
	log    logging.Logger

	mu      sync.Mutex
	memo    map[string]memoEntry
	memoTTL time.Duration
}

// NewAggregator creates an aggregator over the given transport.
func NewAggregator(client Sender, log logging.Logger) (*Aggregator, error) {
	if client == nil {
		return nil, fmt.Errorf("customer: transport client is required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Aggregator{
		client:  client,
		log:     log,
		memo:    make(map[string]memoEntry),
		memoTTL: DefaultMemoTTL,
	}, nil
}

// FetchComplete returns the merged profile for deviceCode.
//
// The basic fetch is authoritative: its failure fails the whole call,
// propagated verbatim. The complete fetch is an enhancement: its
// failure degrades the result to a basic-only profile, logged but not
// surfaced. A binding without a recharge account short-circuits to the
// basic-only profile without attempting the complete fetch.
func (a *Aggregator) FetchComplete(ctx context.Context, deviceCode string, forceRefresh bool) (*Profile, error) {
	if deviceCode == "" {
		return nil, fmt.Errorf("customer: device code is required")
	}

	if !forceRefresh {
		if p, ok := a.memoized(deviceCode); ok {
			return p, nil
		}
	}

	basic, err := a.fetchBasic(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	var complete *completePayload
	if basic.Binding.RechargeAccount != "" {
		complete, err = a.fetchCompletePayload(ctx, deviceCode, basic.Binding.RechargeAccount)
		if err != nil {
			a.log.Warn("complete fetch failed, returning basic-only profile",
				"device_code", deviceCode, "error", err)
			complete = nil
		}
	}

	profile := mergeProfiles(*basic, complete)
	a.memoize(deviceCode, profile)
	return profile, nil
}

// Invalidate drops the memoized result for deviceCode. The reconciler
// calls this before resyncing so a fresh pass never sees a stale memo.
func (a *Aggregator) Invalidate(deviceCode string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.memo, deviceCode)
}

func (a *Aggregator) fetchBasic(ctx context.Context, deviceCode string) (*basicPayload, error) {
	resp, err := a.client.Send(ctx, transport.Request{
		Path:         pathCustomerBasic + "?device_code=" + url.QueryEscape(deviceCode),
		Method:       "GET",
		RequiresAuth: true,
		LoadingLabel: "Loading account...",
	})
	if err != nil {
		return nil, err
	}

	var payload basicPayload
	if err := resp.DecodeData(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (a *Aggregator) fetchCompletePayload(ctx context.Context, deviceCode, rechargeAccount string) (*completePayload, error) {
	query := url.Values{}
	query.Set("device_no", deviceCode)
	query.Set("recharge_account", rechargeAccount)

	resp, err := a.client.Send(ctx, transport.Request{
		Path:         pathCustomerComplete + "?" + query.Encode(),
		Method:       "GET",
		RequiresAuth: true,
		LoadingLabel: "Loading package...",
	})
	if err != nil {
		return nil, err
	}

	var payload completePayload
	if err := resp.DecodeData(&payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (a *Aggregator) memoized(deviceCode string) (*Profile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entry, ok := a.memo[deviceCode]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.profile, true
}

func (a *Aggregator) memoize(deviceCode string, p *Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memo[deviceCode] = memoEntry{
		profile:   p,
		expiresAt: time.Now().Add(a.memoTTL),
	}
}
