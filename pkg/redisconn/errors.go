package redisconn

import "errors"

var (
	ErrEmptyURL         = errors.New("redisconn: empty connection URL")
	ErrInvalidURL       = errors.New("redisconn: invalid connection URL")
	ErrConnectionFailed = errors.New("redisconn: failed to establish connection")
	ErrHealthcheck      = errors.New("redisconn: healthcheck failed")
)
