package registry

import "errors"

var (
	// ErrPriceTooLow rejects registrations and relistings below the minimum.
	// The message mirrors the on-chain revert reason.
	ErrPriceTooLow = errors.New("registry: minimum price is 0.5 EST")
	// ErrPropertyNotFound is returned for an unknown property id.
	ErrPropertyNotFound = errors.New("registry: property not found")
	// ErrUnauthorized is returned when the caller lacks the required role,
	// e.g. a non-owner relisting or a non-validator AI approval.
	ErrUnauthorized = errors.New("registry: caller not authorized")
	// ErrNotForSale is returned when a purchase is attempted on an unlisted
	// property.
	ErrNotForSale = errors.New("registry: property not listed for sale")
	// ErrApprovalIncomplete is returned when one or more of the three
	// approvals is missing; the wrapped message names which.
	ErrApprovalIncomplete = errors.New("registry: purchase approvals incomplete")
	// ErrFundsMismatch is returned when the sent funds do not exactly match
	// the listing price. Both underpayment and overpayment are rejected.
	ErrFundsMismatch = errors.New("registry: sent funds do not match price")
	// ErrInvalidBuyer is returned when the owner attempts to buy their own
	// property.
	ErrInvalidBuyer = errors.New("registry: owner cannot buy own property")
)
