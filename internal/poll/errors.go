package poll

import "errors"

var (
	ErrInvalidDuration  = errors.New("poll duration must be a positive number of minutes")
	ErrTooManyOptions   = errors.New("poll supports at most 10 options")
	ErrInvalidArguments = errors.New("invalid poll arguments")
	ErrRenderFailure    = errors.New("poll render failed")
	ErrCountReadFailure = errors.New("poll reaction count read failed")
	ErrAlreadyStarted   = errors.New("poll engine already started")
)
