// Package customer aggregates the two customer-info endpoints into one
// coherent profile. The aggregator is stateless apart from a short-lived
// memo of the last result per device code; merging is a pure function.
package customer

// Customer identifies the account holder.
type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactPhone string `json:"contact_phone"`
	IDNumber     string `json:"id_number"`
}

// Device describes the bound broadband device.
type Device struct {
	DeviceNo   string `json:"device_no"`
	DeviceName string `json:"device_name"`
	Model      string `json:"model,omitempty"`
	Address    string `json:"address,omitempty"`
}

// Binding carries binding-level attributes from the basic endpoint.
type Binding struct {
	RechargeAccount    string `json:"recharge_account"`
	CurrentPackageName string `json:"current_package_name"`
	ExpireTime         string `json:"expire_time"`
}

// Package is the subscribed tariff package. Only the complete endpoint
// supplies it.
type Package struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Flow  string `json:"flow"`
}

// Account carries the recharge-account balance. Only the complete
// endpoint supplies it.
type Account struct {
	Balance string `json:"balance"`
}

// Profile is the merged customer/device/package/account view consumed
// by feature screens. Customer and Device are always populated on a
// successful aggregation; Package and Account are nil when the complete
// fetch did not contribute — callers must read nil as "unknown", never
// as zero.
type Profile struct {
	Customer Customer `json:"customer"`
	Device   Device   `json:"device"`
	Binding  Binding  `json:"binding_info"`
	Package  *Package `json:"package,omitempty"`
	Account  *Account `json:"account,omitempty"`

	// Legacy aliases read by older screens. Derived views of the merged
	// Package and Account above, never fetched independently.
	PackageInfo *Package `json:"package_info,omitempty"`
	BalanceInfo *Account `json:"balance_info,omitempty"`
}

// basicPayload is the customer-by-device-code response data.
type basicPayload struct {
	Customer Customer `json:"customer"`
	Binding  Binding  `json:"binding_info"`
	Device   Device   `json:"device_info"`
}

// completePayload is the customer-and-package-by-device-no response
// data.
type completePayload struct {
	Customer Customer `json:"customer"`
	Binding  Binding  `json:"binding_info"`
	Device   Device   `json:"device"`
	Package  *Package `json:"package"`
	Account  *Account `json:"account"`
}
