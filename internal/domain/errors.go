package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// Validation errors. All of them match ErrValidation with errors.Is.
var (
	ErrNameRequired          = fmt.Errorf("%w: name is required", ErrValidation)
	ErrContactRequired       = fmt.Errorf("%w: contact is required", ErrValidation)
	ErrAddressRequired       = fmt.Errorf("%w: address is required", ErrValidation)
	ErrBorrowerFieldTooLong  = fmt.Errorf("%w: borrower fields must be 255 characters or less", ErrValidation)
	ErrPaymentAmountInvalid  = fmt.Errorf("%w: payment amount must be a positive number not exceeding 999999999 with at most 8 decimal places", ErrValidation)
	ErrLoanIDRequired        = fmt.Errorf("%w: loan id is required", ErrValidation)
	ErrNoRecognizedUpdate    = fmt.Errorf("%w: request must contain payment, penalty or borrowerUpdate", ErrValidation)
	ErrUnsupportedLoanIntent = fmt.Errorf("%w: unsupported loan operation", ErrValidation)
)

// Validation constants
const (
	MaxBorrowerFieldLength = 255
)
