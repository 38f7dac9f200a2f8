package negotiation

import "errors"

// Protocol violations. Reported with the specific rule violated, never
// silently clamped or corrected.
var (
	ErrPriceOutOfBounds = errors.New("offer amount outside [floor, list] bounds")
	ErrInvalidCounter   = errors.New("counter must move toward the other party's last offer")
	ErrWrongProposer    = errors.New("action not available to the party holding the open offer")
	ErrInvalidSequence  = errors.New("ledger sequence conflict")
	ErrNotParticipant   = errors.New("actor is not a party to this negotiation")
	ErrOwnProject       = errors.New("seller cannot open a negotiation on their own project")
	ErrTooManyRounds    = errors.New("negotiation exceeded the maximum number of rounds")
)

// Lifecycle and registry errors.
var (
	ErrNegotiationNotFound        = errors.New("negotiation not found")
	ErrNegotiationNotActive       = errors.New("negotiation is no longer active")
	ErrNegotiationExpired         = errors.New("negotiation has expired")
	ErrNegotiationNotAccepted     = errors.New("negotiation is not accepted")
	ErrDuplicateActiveNegotiation = errors.New("an active negotiation already exists for this buyer and project")
	ErrProjectNotFound            = errors.New("project not found")
)

// Concurrency conflicts. A conflicting concurrent write fails, it never
// silently overwrites.
var (
	ErrConcurrentModification = errors.New("negotiation was modified concurrently")
	ErrCodeAlreadyRedeemed    = errors.New("discount code already redeemed")
)

// Discount code failures.
var (
	ErrCodeNotFound    = errors.New("discount code not found")
	ErrCodeExpired     = errors.New("discount code expired")
	ErrCodeVoided      = errors.New("discount code voided")
	ErrProjectMismatch = errors.New("discount code does not belong to this project")
	ErrBuyerMismatch   = errors.New("discount code does not belong to this buyer")
)
