// Package binding reconciles the locally cached device binding against
// the server's authoritative device list. Every reconciliation outcome
// is a verdict value; this package never surfaces transport or
// aggregation failures as errors to its caller.
package binding

import (
	"fmt"

	"github.com/AirLink-Net/client_core/internal/customer"
	"github.com/AirLink-Net/client_core/internal/kvstore"
)

// cacheKey is the kvstore key the cached binding persists under.
const cacheKey = "binding_state"

// CachedState is the persisted mirror of the last known-good binding:
// the device code plus the profile subset needed for display before the
// next successful fetch.
type CachedState struct {
	DeviceCode   string `json:"device_code"`
	Bound        bool   `json:"bound"`
	CustomerName string `json:"customer_name,omitempty"`
	DeviceName   string `json:"device_name,omitempty"`
	PackageName  string `json:"package_name,omitempty"`
	ExpireTime   string `json:"expire_time,omitempty"`
	Balance      string `json:"balance,omitempty"`
}

// Cache persists the binding state in the kvstore.
type Cache struct {
	kv *kvstore.Store
}

// NewCache creates a binding cache over kv.
func NewCache(kv *kvstore.Store) (*Cache, error) {
	if kv == nil {
		return nil, fmt.Errorf("binding: kvstore is required")
	}
	return &Cache{kv: kv}, nil
}

// Load returns the cached state, or ok=false when none exists.
func (c *Cache) Load() (CachedState, bool) {
	var state CachedState
	if err := c.kv.GetJSON(cacheKey, &state); err != nil {
		return CachedState{}, false
	}
	return state, true
}

// Save overwrites the cached state.
func (c *Cache) Save(state CachedState) error {
	return c.kv.PutJSON(cacheKey, state)
}

// Clear deletes the cached state entirely.
func (c *Cache) Clear() error {
	return c.kv.Delete(cacheKey)
}

// stateFromProfile derives the display subset persisted alongside the
// device code.
func stateFromProfile(deviceCode string, p *customer.Profile) CachedState {
	state := CachedState{
		DeviceCode:   deviceCode,
		Bound:        true,
		CustomerName: p.Customer.Name,
		DeviceName:   p.Device.DeviceName,
		PackageName:  p.Binding.CurrentPackageName,
		ExpireTime:   p.Binding.ExpireTime,
	}
	if p.Package != nil && p.Package.Name != "" {
		state.PackageName = p.Package.Name
	}
	if p.Account != nil {
		state.Balance = p.Account.Balance
	}
	return state
}
