package inbound

import "errors"

var (
	// ErrConfiguration indicates a required argument was not supplied.
	ErrConfiguration = errors.New("inbound configuration error")

	// ErrValidation indicates the payload is not a usable inbound event.
	ErrValidation = errors.New("inbound validation error")

	// ErrDecode indicates attachment content could not be decoded.
	ErrDecode = errors.New("inbound decode error")

	// ErrPolicy indicates an attachment was refused by the caller's type allow-list.
	ErrPolicy = errors.New("inbound policy error")

	// ErrIO indicates an attachment could not be written to disk.
	ErrIO = errors.New("inbound I/O error")
)
