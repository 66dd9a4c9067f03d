// Package testutil provides a scriptable fake broadband backend for
// package tests. It simulates the device-list, basic customer, and
// complete customer endpoints plus one invoice route using the integer
// Code envelope.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gorilla/mux"
)

// Device is one entry in the fake device list.
type Device struct {
	DeviceNo string `json:"device_no"`
}

// FakeBackend is an httptest server speaking the backend's envelopes.
// All state mutators are safe for concurrent use with in-flight
// requests.
type FakeBackend struct {
	Server *httptest.Server

	mu      sync.Mutex
	devices []Device

	customerName    string
	rechargeAccount string
	deviceName      string
	packageName     string
	balance         string

	basicStatus    int
	completeStatus int
	deviceStatus   int
	basicBizFail   bool
	latency        time.Duration

	deviceListCalls int
	basicCalls      int
	completeCalls   int
}

// NewFakeBackend starts a fake backend with one bound device.
func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		devices:         []Device{{DeviceNo: "DEV-001"}},
		customerName:    "Zhang Wei",
		rechargeAccount: "RA-1001",
		deviceName:      "Home Fiber 1G",
		packageName:     "Fiber 1000M",
		balance:         "58.20",
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/user/devices", fb.handleDeviceList).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/by-device-code", fb.handleBasic).Methods(http.MethodGet)
	r.HandleFunc("/api/customer/package/by-device-no", fb.handleComplete).Methods(http.MethodGet)
	r.HandleFunc("/invoice/list", fb.handleInvoiceList).Methods(http.MethodGet)

	fb.Server = httptest.NewServer(r)
	return fb
}

// Close shuts the server down.
func (fb *FakeBackend) Close() {
	fb.Server.Close()
}

// URL returns the server base URL.
func (fb *FakeBackend) URL() string {
	return fb.Server.URL
}

// SetDevices replaces the device list.
func (fb *FakeBackend) SetDevices(codes ...string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.devices = nil
	for _, code := range codes {
		fb.devices = append(fb.devices, Device{DeviceNo: code})
	}
}

// SetRechargeAccount overrides the recharge account in basic responses.
// An empty value simulates a binding with no recharge account.
func (fb *FakeBackend) SetRechargeAccount(account string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rechargeAccount = account
}

// FailBasic makes the basic endpoint answer with the given HTTP status.
// Status 0 restores normal behavior.
func (fb *FakeBackend) FailBasic(status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.basicStatus = status
}

// FailBasicBusiness makes the basic endpoint answer 200 with a failure
// envelope.
func (fb *FakeBackend) FailBasicBusiness(fail bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.basicBizFail = fail
}

// FailComplete makes the complete endpoint answer with the given HTTP
// status. Status 0 restores normal behavior.
func (fb *FakeBackend) FailComplete(status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.completeStatus = status
}

// FailDeviceList makes the device-list endpoint answer with the given
// HTTP status. Status 0 restores normal behavior.
func (fb *FakeBackend) FailDeviceList(status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.deviceStatus = status
}

// SetLatency delays every device-list response, letting tests hold a
// request in flight deterministically.
func (fb *FakeBackend) SetLatency(d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.latency = d
}

// DeviceListCalls returns how many times the device list was fetched.
func (fb *FakeBackend) DeviceListCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.deviceListCalls
}

// BasicCalls returns how many times the basic endpoint was fetched.
func (fb *FakeBackend) BasicCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.basicCalls
}

// CompleteCalls returns how many times the complete endpoint was
// fetched.
func (fb *FakeBackend) CompleteCalls() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.completeCalls
}

func (fb *FakeBackend) handleDeviceList(w http.ResponseWriter, _ *http.Request) {
	fb.mu.Lock()
	fb.deviceListCalls++
	status := fb.deviceStatus
	devices := append([]Device(nil), fb.devices...)
	latency := fb.latency
	fb.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeSuccess(w, map[string]any{"devices": devices})
}

func (fb *FakeBackend) handleBasic(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.basicCalls++
	status := fb.basicStatus
	bizFail := fb.basicBizFail
	payload := map[string]any{
		"customer": map[string]any{
			"id":            "CUST-9",
			"name":          fb.customerName,
			"contact_phone": "13800000000",
		},
		"binding_info": map[string]any{
			"recharge_account":     fb.rechargeAccount,
			"current_package_name": fb.packageName,
			"expire_time":          "2026-12-31",
		},
		"device_info": map[string]any{
			"device_no":   r.URL.Query().Get("device_code"),
			"device_name": fb.deviceName,
		},
	}
	fb.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if bizFail {
		writeFailure(w, "customer not found")
		return
	}
	writeSuccess(w, payload)
}

func (fb *FakeBackend) handleComplete(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.completeCalls++
	status := fb.completeStatus
	payload := map[string]any{
		"customer": map[string]any{
			"id":        "CUST-9",
			"name":      fb.customerName,
			"id_number": "110101199001011234",
		},
		"binding_info": map[string]any{
			"recharge_account": r.URL.Query().Get("recharge_account"),
		},
		"device": map[string]any{
			"device_no":   r.URL.Query().Get("device_no"),
			"device_name": fb.deviceName + " Pro",
		},
		"package": map[string]any{
			"name":  fb.packageName,
			"price": "99.00",
			"flow":  "unlimited",
		},
		"account": map[string]any{
			"balance": fb.balance,
		},
	}
	fb.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	writeSuccess(w, payload)
}

func (fb *FakeBackend) handleInvoiceList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{
		"Code":    0,
		"Message": "",
		"Data":    []map[string]any{{"invoice_no": "INV-2026-001", "amount": "99.00"}},
	})
}

func writeSuccess(w http.ResponseWriter, data any) {
	writeJSON(w, map[string]any{"success": true, "data": data})
}

func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, map[string]any{"success": false, "message": message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
