package lifecycle

import "errors"

var (
	// ErrNoPlan is returned when the account has no active plan
	ErrNoPlan = errors.New("account has no active plan")
	// ErrAccountFrozen is returned when the account is frozen after a failed payment
	ErrAccountFrozen = errors.New("account is frozen")
	// ErrDomainExists is returned when the domain is already registered locally
	ErrDomainExists = errors.New("domain already registered")
	// ErrDomainUnavailable is returned when the registrar reports the domain as taken
	ErrDomainUnavailable = errors.New("domain is not available")
	// ErrNotTransferable is returned when transferring a domain the registrar reports as free
	ErrNotTransferable = errors.New("domain is not registered and cannot be transferred")
	// ErrPriceUnavailable is returned when the registrar quotes no price
	ErrPriceUnavailable = errors.New("unable to determine price")
	// ErrNotFound is returned when the domain does not exist
	ErrNotFound = errors.New("domain not found")
	// ErrForbidden is returned when the domain is owned by another account
	ErrForbidden = errors.New("domain not owned by account")
	// ErrRegistrarNotLinked is returned when the domain has no registrar reference
	ErrRegistrarNotLinked = errors.New("domain has no registrar reference")
	// ErrFullyCovered is returned when a paid checkout is requested for a credit-covered amount
	ErrFullyCovered = errors.New("amount is fully covered by credit")
)
