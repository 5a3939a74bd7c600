package service

import "errors"

var (
	// ErrStudentNotFound indicates the requested student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrPeriodNotFound indicates the payment targets a period or month absent from the schedule.
	ErrPeriodNotFound = errors.New("billing period not found")
	// ErrInvalidPayment indicates a payment that cannot be applied to the target period.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrInvalidSettings indicates a settings update that is internally inconsistent.
	ErrInvalidSettings = errors.New("invalid billing settings")
)
