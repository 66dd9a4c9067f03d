package binding

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/AirLink-Net/client_core/internal/customer"
	"github.com/AirLink-Net/client_core/internal/logging"
	"github.com/AirLink-Net/client_core/internal/session"
	"github.com/AirLink-Net/client_core/internal/transport"
)

// pathUserDevices lists the devices bound to the authenticated user.
const pathUserDevices = "/api/user/devices"

// Outcome is the verdict of one reconciliation pass.
type Outcome string

const (
	// OutcomeUnchanged: cache matches the server, or a failure left the
	// prior cache untouched.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeUpdated: drift was detected and the cache was resynced.
	OutcomeUpdated Outcome = "updated"
	// OutcomeUnbound: the server no longer lists any device; local
	// binding state was cleared.
	OutcomeUnbound Outcome = "unbound"
	// OutcomeSkippedNotAuthenticated: no session, nothing to reconcile.
	OutcomeSkippedNotAuthenticated Outcome = "skipped_not_authenticated"
)

// Result is what a reconciliation pass hands back to the UI layer.
type Result struct {
	Outcome Outcome
	// Profile is set only for OutcomeUpdated.
	Profile *customer.Profile
	// RedirectToBinding instructs the caller to route into the
	// re-binding flow. Set only for OutcomeUnbound.
	RedirectToBinding bool
}

// Aggregator is the customer-info surface the reconciler depends on.
type Aggregator interface {
	FetchComplete(ctx context.Context, deviceCode string, forceRefresh bool) (*customer.Profile, error)
	Invalidate(deviceCode string)
}

// deviceEntry tolerates both spellings the backend uses for the device
// code field.
type deviceEntry struct {
	DeviceCode string `json:"deviceCode"`
	DeviceNo   string `json:"device_no"`
}

func (d deviceEntry) code() string {
	if d.DeviceCode != "" {
		return d.DeviceCode
	}
	return d.DeviceNo
}

type deviceListPayload struct {
	Devices []deviceEntry `json:"devices"`
}

// Reconciler compares the server's device list against the cached
// binding and resolves drift. At most one pass runs at a time;
// concurrent callers share the in-flight pass and its result.
type Reconciler struct {
	client   customer.Sender
	sessions *session.Store
	agg      Aggregator
	cache    *Cache
	log      logging.Logger

	mu       sync.Mutex
	inflight *inflightPass
}

type inflightPass struct {
	done   chan struct{}
	result Result
}

// NewReconciler creates a reconciler.
func NewReconciler(client customer.Sender, sessions *session.Store, agg Aggregator, cache *Cache, log logging.Logger) (*Reconciler, error) {
	if client == nil {
		return nil, fmt.Errorf("binding: transport client is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("binding: session store is required")
	}
	if agg == nil {
		return nil, fmt.Errorf("binding: aggregator is required")
	}
	if cache == nil {
		return nil, fmt.Errorf("binding: cache is required")
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Reconciler{
		client:   client,
		sessions: sessions,
		agg:      agg,
		cache:    cache,
		log:      log,
	}, nil
}

// Reconcile runs one reconciliation pass, or joins the pass already in
// flight. Joining callers wait for the shared result even if their own
// context ends first: a pass is never aborted mid-merge, a caller that
// went away simply ignores the verdict.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	r.mu.Lock()
	if r.inflight != nil {
		pass := r.inflight
		r.mu.Unlock()
		<-pass.done
		return pass.result
	}
	pass := &inflightPass{done: make(chan struct{})}
	r.inflight = pass
	r.mu.Unlock()

	pass.result = r.run(ctx)

	r.mu.Lock()
	r.inflight = nil
	r.mu.Unlock()
	close(pass.done)

	return pass.result
}

func (r *Reconciler) run(ctx context.Context) Result {
	sess := r.sessions.Get()
	if !sess.IsAuthenticated {
		return Result{Outcome: OutcomeSkippedNotAuthenticated}
	}
	cachedCode := sess.DeviceCode

	devices, err := r.fetchServerDevices(ctx)
	if err != nil {
		// Verdicts only: a failed pass must never crash a screen that
		// wanted cached data. 401 already cleared the session inside
		// the transport.
		r.log.Warn("device list fetch failed", "error", err)
		return Result{Outcome: OutcomeUnchanged}
	}

	if len(devices) == 0 {
		if cachedCode == "" {
			return Result{Outcome: OutcomeUnchanged}
		}
		return r.handleUnbind(cachedCode)
	}

	// One active device per user; further entries are not disambiguated
	// at this layer.
	serverCode := devices[0].code()
	if serverCode == "" {
		r.log.Warn("device list entry has no device code")
		return Result{Outcome: OutcomeUnchanged}
	}

	if serverCode == cachedCode {
		return Result{Outcome: OutcomeUnchanged}
	}

	return r.resync(ctx, cachedCode, serverCode)
}

func (r *Reconciler) fetchServerDevices(ctx context.Context) ([]deviceEntry, error) {
	resp, err := r.client.Send(ctx, transport.Request{
		Path:         pathUserDevices,
		Method:       http.MethodGet,
		RequiresAuth: true,
		LoadingLabel: "Checking binding...",
	})
	if err != nil {
		return nil, err
	}

	var payload deviceListPayload
	if err := resp.DecodeData(&payload); err != nil {
		return nil, err
	}
	return payload.Devices, nil
}

// handleUnbind is the detected-unbind transition: the server dropped the
// binding, so local state follows.
func (r *Reconciler) handleUnbind(cachedCode string) Result {
	if err := r.cache.Clear(); err != nil {
		r.log.Error("clear binding cache", "error", err)
	}
	if err := r.sessions.ClearDevice(); err != nil {
		r.log.Error("clear session device fields", "error", err)
	}
	r.agg.Invalidate(cachedCode)

	r.log.Info("binding removed on server, local state cleared", "device_code", cachedCode)
	return Result{Outcome: OutcomeUnbound, RedirectToBinding: true}
}

// resync refetches the profile for the server's device code and
// overwrites local state. On failure the prior cache stays untouched:
// stale-but-present beats corrupt.
func (r *Reconciler) resync(ctx context.Context, cachedCode, serverCode string) Result {
	r.agg.Invalidate(serverCode)

	profile, err := r.agg.FetchComplete(ctx, serverCode, true)
	if err != nil {
		r.log.Warn("resync aggregation failed, keeping stale cache",
			"cached_code", cachedCode, "server_code", serverCode, "error", err)
		return Result{Outcome: OutcomeUnchanged}
	}

	if err := r.sessions.SetDeviceCode(serverCode); err != nil {
		r.log.Error("update session device code", "error", err)
		return Result{Outcome: OutcomeUnchanged}
	}
	if err := r.cache.Save(stateFromProfile(serverCode, profile)); err != nil {
		r.log.Error("persist binding cache", "error", err)
	}

	r.log.Info("binding resynced", "from", cachedCode, "to", serverCode)
	return Result{Outcome: OutcomeUpdated, Profile: profile}
}
