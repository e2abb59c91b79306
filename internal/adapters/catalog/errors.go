package catalog

import "errors"

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrBannerNotFound = errors.New("banner not found")
	ErrEmptyCatalog   = errors.New("catalog has no banners")
	ErrDecode         = errors.New("decode banners")
	ErrFetch          = errors.New("fetch banners")
)
