package config

import "errors"

var (
	ErrMissingClientID     = errors.New("zoom client ID is required (set ZOOM_CLIENT_ID env var or --client-id flag)")
	ErrMissingClientSecret = errors.New("zoom client secret is required (set ZOOM_CLIENT_SECRET env var or --client-secret flag)")
	ErrInvalidLeaveTime    = errors.New("leave time must be specified and greater than zero")
	ErrMissingMeetingID    = errors.New("meeting ID cannot be blank")
	ErrMissingPassword     = errors.New("meeting password cannot be blank")
	ErrMissingDisplayName  = errors.New("display name cannot be blank")
	ErrInvalidMeetingID    = errors.New("meeting ID must be numeric")
)
