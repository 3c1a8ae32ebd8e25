package service

import "errors"

var (
	// ErrEmailMissing is returned when a registration carries no email.
	ErrEmailMissing = errors.New("email is required")
	// ErrPasswordMissing is returned when a registration carries no password.
	ErrPasswordMissing = errors.New("password is required")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("user with this email already exists")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidUserType is returned for registrations that are neither consumer nor provider.
	ErrInvalidUserType = errors.New("unknown account type")
)
