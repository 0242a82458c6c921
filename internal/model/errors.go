package model

import "errors"

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrRoleNotFound      = errors.New("role not found")

	ErrTokenNotFound = errors.New("refresh token not found")

	ErrLotNotFound = errors.New("parking lot not found")

	ErrAddressNotFound = errors.New("address not found")
	ErrRouteNotFound   = errors.New("route not found")
)
