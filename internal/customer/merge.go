package customer

// mergeProfiles combines the basic and complete payloads into one
// profile. Overlapping fields take the complete value when it is
// non-empty, since the complete endpoint is the more recently enriched
// source; fields only the basic payload carries are preserved. Nothing
// from either source is dropped. complete may be nil (degraded
// aggregation), in which case the profile is basic-only.
func mergeProfiles(basic basicPayload, complete *completePayload) *Profile {
	p := &Profile{
		Customer: basic.Customer,
		Device:   basic.Device,
		Binding:  basic.Binding,
	}
	if complete == nil {
		return p
	}

	p.Customer = mergeCustomer(basic.Customer, complete.Customer)
	p.Device = mergeDevice(basic.Device, complete.Device)
	p.Binding = mergeBinding(basic.Binding, complete.Binding)

	if complete.Package != nil {
		pkg := *complete.Package
		p.Package = &pkg
		alias := pkg
		p.PackageInfo = &alias
	}
	if complete.Account != nil {
		acct := *complete.Account
		p.Account = &acct
		alias := acct
		p.BalanceInfo = &alias
	}
	return p
}

func mergeCustomer(basic, complete Customer) Customer {
	return Customer{
		ID:           pick(complete.ID, basic.ID),
		Name:         pick(complete.Name, basic.Name),
		ContactPhone: pick(complete.ContactPhone, basic.ContactPhone),
		IDNumber:     pick(complete.IDNumber, basic.IDNumber),
	}
}

func mergeDevice(basic, complete Device) Device {
	return Device{
		DeviceNo:   pick(complete.DeviceNo, basic.DeviceNo),
		DeviceName: pick(complete.DeviceName, basic.DeviceName),
		Model:      pick(complete.Model, basic.Model),
		Address:    pick(complete.Address, basic.Address),
	}
}

func mergeBinding(basic, complete Binding) Binding {
	return Binding{
		RechargeAccount:    pick(complete.RechargeAccount, basic.RechargeAccount),
		CurrentPackageName: pick(complete.CurrentPackageName, basic.CurrentPackageName),
		ExpireTime:         pick(complete.ExpireTime, basic.ExpireTime),
	}
}

// pick prefers the complete-source value, falling back to basic.
func pick(complete, basic string) string {
	if complete != "" {
		return complete
	}
	return basic
}
