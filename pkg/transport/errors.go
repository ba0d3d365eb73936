package transport

import "errors"

var (
	// ErrClosed is returned by Send/Listen operations performed after Close.
	ErrClosed = errors.New("transport: closed")

	// ErrShortFrame is returned when a peer closes before the 4-byte length
	// prefix is complete. A payload cut short yields a wrapped read error.
	ErrShortFrame = errors.New("transport: short frame")
)
