package model

import "errors"

// Sentinel errors shared by the service layer
var (
	ErrEmptyInput       = errors.New("empty input")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrPayloadTooLarge  = errors.New("payload too large")
)
