package media

import "errors"

var (
	// ErrContentFetch indicates binary content could not be retrieved from the platform.
	ErrContentFetch = errors.New("content fetch failed")
	// ErrAssetTooLarge indicates the payload exceeds the configured max content size.
	ErrAssetTooLarge = errors.New("media content too large")
)
