package risk

import "errors"

var (
	ErrBlocked          = errors.New("risk blocked")
	ErrConfigMissing    = errors.New("risk config not found")
	ErrDeleteDefault    = errors.New("default risk config cannot be deleted")
	ErrConfigUnreadable = errors.New("risk config file unreadable, refusing to overwrite")
)
