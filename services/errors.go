package services

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrAmbiguousRegistration = errors.New("more than one active registration matches")
	ErrDuplicateReminder     = errors.New("reminder already recorded for this day")
	ErrCodeInvalid           = errors.New("verification code invalid")
	ErrCodeUsed              = errors.New("verification code already used")
	ErrCodeExpired           = errors.New("verification code expired")
	ErrSweepInProgress       = errors.New("sweep already in progress")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrInvalidInput          = errors.New("invalid input")
	ErrMalformedUpdate       = errors.New("malformed telegram update")
	ErrOwnerNotRegistered    = errors.New("business owner has no active telegram registration")
	ErrDeliveryFailed        = errors.New("delivery failed")
)
