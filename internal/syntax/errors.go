package syntax

import "errors"

var (
	// ErrUnknownParser is returned for an unregistered parser name.
	ErrUnknownParser = errors.New("unknown parser")

	// ErrParse is returned when a grammar fails to produce a tree.
	ErrParse = errors.New("parse failed")
)
