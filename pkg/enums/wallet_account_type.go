package enums

import "fmt"

// WalletAccountType distinguishes user-facing balances from the platform's
// internal clearing accounts.
type WalletAccountType string

const (
	WalletAccountAvailable       WalletAccountType = "available"
	WalletAccountPlatformCash    WalletAccountType = "platform_cash"
	WalletAccountPlatformRevenue WalletAccountType = "platform_revenue"
)

var validWalletAccountTypes = []WalletAccountType{
	WalletAccountAvailable,
	WalletAccountPlatformCash,
	WalletAccountPlatformRevenue,
}

// String implements fmt.Stringer.
func (w WalletAccountType) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletAccountType.
func (w WalletAccountType) IsValid() bool {
	for _, candidate := range validWalletAccountTypes {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletAccountType converts raw input into a WalletAccountType.
func ParseWalletAccountType(value string) (WalletAccountType, error) {
	for _, candidate := range validWalletAccountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet account type %q", value)
}
