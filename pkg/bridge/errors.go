package bridge

import "errors"

var (
	// ErrSetupFailed marks setup errors the host should retry.
	ErrSetupFailed  = errors.New("bridge: unable to connect to Abode")
	ErrAlreadySetup = errors.New("bridge: entry already set up")
	ErrNotSetup     = errors.New("bridge: entry not set up")
)
