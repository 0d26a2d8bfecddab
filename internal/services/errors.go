package services

import "errors"

var (
	// ErrDuplicateEmail is returned when registering an email that already has an account.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountNotFound is returned by paths that address an account by email.
	ErrAccountNotFound = errors.New("account not found")

	// ErrForbidden is returned when the caller may not modify the target account.
	ErrForbidden = errors.New("not allowed to modify this account")

	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorage wraps failures of the storage layer.
	ErrStorage = errors.New("storage failure")

	// ErrMailerDisabled is returned when no mail transport is configured.
	ErrMailerDisabled = errors.New("feedback mail is not configured")
)
