package timer

import (
	"fmt"
	"strings"
)

// Targeting modes are closed enumerations. Records coming from the
// configuration store are parsed through these constructors so that a
// mistyped mode string fails loudly at load time instead of silently
// hitting the filter's default-allow path.

type Kind string

const (
	KindProduct Kind = "product-page"
	KindBar     Kind = "top-bottom-bar"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindProduct, KindBar:
		return k, nil
	}
	return "", fmt.Errorf("unknown timer kind %q", s)
}

type Mode string

const (
	ModeDeadline Mode = "deadline" // counts down to a fixed instant
	ModeSession  Mode = "session"  // fixed budget per visitor, client-clocked
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDeadline, ModeSession:
		return m, nil
	}
	return "", fmt.Errorf("unknown timer mode %q", s)
}

type ExpiryPolicy string

const (
	ExpiryUnpublish ExpiryPolicy = "unpublish"
	ExpiryKeep      ExpiryPolicy = "keep"
	ExpiryHide      ExpiryPolicy = "hide"
)

func ParseExpiryPolicy(s string) (ExpiryPolicy, error) {
	if s == "" {
		return ExpiryUnpublish, nil
	}
	switch p := ExpiryPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ExpiryUnpublish, ExpiryKeep, ExpiryHide:
		return p, nil
	}
	return "", fmt.Errorf("unknown expiry policy %q", s)
}

type CTAType string

const (
	CTANone      CTAType = "none"
	CTAButton    CTAType = "button"
	CTAClickable CTAType = "clickable"
)

func ParseCTAType(s string) (CTAType, error) {
	switch c := CTAType(strings.ToLower(strings.TrimSpace(s))); c {
	case "", "no":
		return CTANone, nil
	case CTANone, CTAButton, CTAClickable:
		return c, nil
	}
	return "", fmt.Errorf("unknown call-to-action type %q", s)
}

type ProductSelection string

const (
	ProductsAll         ProductSelection = "all"
	ProductsSpecific    ProductSelection = "specific"
	ProductsCollections ProductSelection = "collections"
	ProductsTags        ProductSelection = "tags"
	ProductsCustom      ProductSelection = "custom"
)

func ParseProductSelection(s string) (ProductSelection, error) {
	if s == "" {
		return ProductsAll, nil
	}
	switch p := ProductSelection(strings.ToLower(strings.TrimSpace(s))); p {
	case ProductsAll, ProductsSpecific, ProductsCollections, ProductsTags, ProductsCustom:
		return p, nil
	}
	return "", fmt.Errorf("unknown product selection %q", s)
}

type PageSelection string

const (
	PagesEvery          PageSelection = "every-page"
	PagesHome           PageSelection = "home-page"
	PagesAllProducts    PageSelection = "all-product-pages"
	PagesAllCollections PageSelection = "all-collection-pages"
	PagesCart           PageSelection = "cart-page"
	PagesSpecific       PageSelection = "specific-pages"
	PagesCustom         PageSelection = "custom"
)

func ParsePageSelection(s string) (PageSelection, error) {
	if s == "" {
		return PagesEvery, nil
	}
	switch p := PageSelection(strings.ToLower(strings.TrimSpace(s))); p {
	case PagesEvery, PagesHome, PagesAllProducts, PagesAllCollections, PagesCart, PagesCustom:
		return p, nil
	case PagesSpecific, "specific-product-pages", "specific-collection-pages":
		// Historical configs carry three specific-* spellings; they all
		// match against the same specific-page URL list.
		return p, nil
	}
	return "", fmt.Errorf("unknown page selection %q", s)
}

// IsSpecific reports whether the mode matches against the specific-page
// URL list.
func (p PageSelection) IsSpecific() bool {
	switch p {
	case PagesSpecific, "specific-product-pages", "specific-collection-pages":
		return true
	}
	return false
}

type Geolocation string

const (
	GeoAllWorld          Geolocation = "all-world"
	GeoSpecificCountries Geolocation = "specific-countries"
)

func ParseGeolocation(s string) (Geolocation, error) {
	if s == "" {
		return GeoAllWorld, nil
	}
	switch g := Geolocation(strings.ToLower(strings.TrimSpace(s))); g {
	case GeoAllWorld, GeoSpecificCountries:
		return g, nil
	}
	return "", fmt.Errorf("unknown geolocation mode %q", s)
}
