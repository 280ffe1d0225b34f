package provision

import "errors"

var (
	ErrNetwork = errors.New("asset download failed")
)
