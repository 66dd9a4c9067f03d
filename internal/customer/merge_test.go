package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProfiles_BasicOnly(t *testing.T) {
	basic := basicPayload{
		Customer: Customer{ID: "C1", Name: "Zhang Wei", ContactPhone: "13800000000"},
		Binding:  Binding{RechargeAccount: "RA-1", CurrentPackageName: "Fiber 300M", ExpireTime: "2026-06-30"},
		Device:   Device{DeviceNo: "A1", DeviceName: "Home Router"},
	}

	p := mergeProfiles(basic, nil)

	require.NotNil(t, p)
	assert.Equal(t, basic.Customer, p.Customer)
	assert.Equal(t, basic.Device, p.Device)
	assert.Equal(t, basic.Binding, p.Binding)
	assert.Nil(t, p.Package, "package must be absent, not zero-filled")
	assert.Nil(t, p.Account, "account must be absent, not zero-filled")
	assert.Nil(t, p.PackageInfo)
	assert.Nil(t, p.BalanceInfo)
}

func TestMergeProfiles_CompleteWinsOnOverlap(t *testing.T) {
	basic := basicPayload{
		Customer: Customer{ID: "C1", Name: "Zhang Wei", ContactPhone: "13800000000"},
		Binding:  Binding{RechargeAccount: "RA-1", CurrentPackageName: "Fiber 300M"},
		Device:   Device{DeviceNo: "A1", DeviceName: "Home Router"},
	}
	complete := &completePayload{
		Customer: Customer{ID: "C1", Name: "Zhang Wei", IDNumber: "1101..."},
		Binding:  Binding{RechargeAccount: "RA-1"},
		Device:   Device{DeviceNo: "A1", DeviceName: "Home Router Pro"},
		Package:  &Package{Name: "Fiber 1000M", Price: "99.00", Flow: "unlimited"},
		Account:  &Account{Balance: "58.20"},
	}

	p := mergeProfiles(basic, complete)

	// Overlap: the complete source wins.
	assert.Equal(t, "Home Router Pro", p.Device.DeviceName)
	// Basic-only fields survive the merge.
	assert.Equal(t, "13800000000", p.Customer.ContactPhone)
	assert.Equal(t, "Fiber 300M", p.Binding.CurrentPackageName)
	// Complete-only fields arrive.
	assert.Equal(t, "1101...", p.Customer.IDNumber)
	require.NotNil(t, p.Package)
	assert.Equal(t, "Fiber 1000M", p.Package.Name)
	require.NotNil(t, p.Account)
	assert.Equal(t, "58.20", p.Account.Balance)
}

func TestMergeProfiles_LegacyAliasesAreDerivedViews(t *testing.T) {
	basic := basicPayload{Device: Device{DeviceNo: "A1"}}
	complete := &completePayload{
		Package: &Package{Name: "Fiber 1000M"},
		Account: &Account{Balance: "10.00"},
	}

	p := mergeProfiles(basic, complete)

	require.NotNil(t, p.PackageInfo)
	require.NotNil(t, p.BalanceInfo)
	assert.Equal(t, *p.Package, *p.PackageInfo)
	assert.Equal(t, *p.Account, *p.BalanceInfo)
}

func TestMergeProfiles_EmptyCompleteFieldsFallBack(t *testing.T) {
	basic := basicPayload{
		Customer: Customer{ID: "C1", Name: "Zhang Wei"},
		Device:   Device{DeviceNo: "A1", DeviceName: "Home Router"},
	}
	// Complete payload present but sparsely populated.
	complete := &completePayload{Device: Device{DeviceNo: "A1"}}

	p := mergeProfiles(basic, complete)

	assert.Equal(t, "Home Router", p.Device.DeviceName, "empty complete field must not erase basic value")
	assert.Equal(t, "Zhang Wei", p.Customer.Name)
}
