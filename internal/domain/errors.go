package domain

import "errors"

var (
	// ErrCatalogEmpty is returned when no country data is available to serve.
	ErrCatalogEmpty = errors.New("country catalog is empty")
	// ErrCountryNotFound indicates a submitted country ID is not in the catalog.
	ErrCountryNotFound = errors.New("country not found")
)
