package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrNotConnected         = errors.New("no active Snowflake session")
	ErrSessionExpired       = errors.New("session not found or expired")
	ErrQueryBlocked         = errors.New("query blocked by guardrails")
	ErrSnowflakeUnavailable = errors.New("snowflake unreachable")
	ErrInvalidIdentifier    = errors.New("invalid identifier")
	ErrInvalidRequest       = errors.New("invalid request")
)
