package models

import "errors"

var (
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrMalformedSeries     = errors.New("malformed series")
	ErrDegenerateSnapshot  = errors.New("degenerate snapshot")
	ErrInvalidParams       = errors.New("invalid engine parameters")
	ErrUnknownPreset       = errors.New("unknown preset")
	ErrEmptyUniverse       = errors.New("empty universe")
	ErrNoResult            = errors.New("no scan result available")
	ErrJobNotFound         = errors.New("scan job not found")
	ErrNoData              = errors.New("no market data")
)
