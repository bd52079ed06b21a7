package gatekeeper

import "errors"

var (
	ErrInvalidUpstream = errors.New("invalid upstream url")
	ErrMissingAppName  = errors.New("config app name cannot be empty")
)
