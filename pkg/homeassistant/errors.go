package homeassistant

import "errors"

var (
	ErrUnknownService  = errors.New("homeassistant: unknown service")
	ErrInvalidPayload  = errors.New("homeassistant: invalid service payload")
	ErrServiceExists   = errors.New("homeassistant: service already registered")
	ErrUnknownEntity   = errors.New("homeassistant: unknown entity")
	ErrUnknownCommand  = errors.New("homeassistant: unknown command")
	ErrCommandRejected = errors.New("homeassistant: entity does not accept commands")
)
