package domain

import "errors"

var (
	ErrInvalidData              = errors.New("invalid data")
	ErrIncorrectArguments       = errors.New("incorrect arguments")
	ErrDeviceExists             = errors.New("device exists")
	ErrNoDevice                 = errors.New("no device")
	ErrDeviceChanged            = errors.New("device changed")
	ErrInvalidRecipient         = errors.New("invalid recipient")
	ErrNoRecipient              = errors.New("no recipient")
	ErrNoRecipientDevice        = errors.New("no recipient device")
	ErrRecipientIdentityChanged = errors.New("recipient identity changed")
	ErrMaxPreKeys               = errors.New("reached max prekeys")
	ErrPreKeyIDExists           = errors.New("prekey id exists")
	ErrNotAuthenticated         = errors.New("not authenticated")
	ErrIncrementingCounter      = errors.New("error incrementing signature counter")
)
