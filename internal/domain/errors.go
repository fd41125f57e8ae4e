package domain

import "errors"

var (
	// ErrDataFetch marks a collaborator that could not be read. The whole run fails.
	ErrDataFetch = errors.New("data fetch failed")

	// ErrInvalidHorizon is returned for horizons other than 30, 60 or 90 days.
	ErrInvalidHorizon = errors.New("invalid forecast horizon")
)
