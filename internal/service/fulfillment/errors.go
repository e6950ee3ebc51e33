package fulfillment

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Every rejection is local: an operation either fully
// commits (order + items + history) or fully aborts.
var (
	ErrValidation    = errors.New("validation")    // 400
	ErrPrecondition  = errors.New("precondition")  // 422
	ErrAuthorization = errors.New("authorization") // 403
	ErrNotFound      = errors.New("not found")     // 404
	ErrConflict      = errors.New("conflict")      // 409
)

// ErrPaymentUnderReview is surfaced distinctly: a manual payment awaiting
// admin review blocks every Advance until approved or rejected.
var ErrPaymentUnderReview = fmt.Errorf("%w: payment under review", ErrPrecondition)
