package hashtag

import "errors"

// Fatal run conditions. Everything else is absorbed into record data.
var (
	ErrMissingConfig = errors.New("missing configuration")
	ErrUnknownMode   = errors.New("unrecognized mode")
	ErrNoHashtags    = errors.New("hashtags required for search and monitor modes")
)
