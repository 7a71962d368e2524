// Package catalog holds the static list of purchasable credit bundles. It is
// the single source of truth for prices and credit counts: order creation and
// payment verification both resolve amounts here, never from client input.
package catalog

import (
	"github.com/draftwise/coverletter-api/internal/domain"
)

var packages = []domain.CreditPackage{
	{
		ID:                domain.PackageBasic,
		Name:              "Basic",
		Credits:           10,
		PriceMinorUnitINR: 9900, // ₹99.00
		PriceMinorUnitUSD: 199,  // $1.99
	},
	{
		ID:                domain.PackageStandard,
		Name:              "Standard",
		Credits:           30,
		PriceMinorUnitINR: 24900, // ₹249.00
		PriceMinorUnitUSD: 499,   // $4.99
	},
	{
		ID:                domain.PackagePremium,
		Name:              "Premium",
		Credits:           100,
		PriceMinorUnitINR: 69900, // ₹699.00
		PriceMinorUnitUSD: 1299,  // $12.99
	},
}

var byID = func() map[string]domain.CreditPackage {
	m := make(map[string]domain.CreditPackage, len(packages))
	for _, p := range packages {
		m[p.ID] = p
	}
	return m
}()

// ListPackages returns the full catalog in display order.
func ListPackages() []domain.CreditPackage {
	out := make([]domain.CreditPackage, len(packages))
	copy(out, packages)
	return out
}

// FindPackage resolves a package id, reporting whether it exists.
func FindPackage(id string) (domain.CreditPackage, bool) {
	p, ok := byID[id]
	return p, ok
}

// PriceFor returns the catalog price of a package in the smallest unit of the
// given currency. The currency must already be validated as accepted.
func PriceFor(p domain.CreditPackage, currency string) int64 {
	if currency == domain.CurrencyINR {
		return p.PriceMinorUnitINR
	}
	return p.PriceMinorUnitUSD
}
