package auth

import "errors"

var (
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrUnauthorized = errors.New("auth: unauthorized")
)
