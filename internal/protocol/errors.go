package protocol

import "errors"

var (
	ErrInvalidFilter = errors.New("protocol: invalid filter value")
	ErrUnknownOption = errors.New("protocol: unknown menu option")
)
