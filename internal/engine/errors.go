package engine

import "errors"

// Sentinel errors shared by the engine, services, and HTTP mapping.
// Everything that reaches a handler is classified through errors.Is on
// one of these; anything else surfaces as an internal error.
var (
	ErrInvalidSide         = errors.New("side must be higher or lower")
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrInvalidPrice        = errors.New("limit price must be strictly between 0 and 1")
	ErrUnsupportedDuration = errors.New("unsupported round duration")

	ErrRoundNotFound      = errors.New("round not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrSettlementNotFound = errors.New("settlement not found")

	// ErrOrderTooLarge guards the AMM: a single execution may not consume
	// more than half of the side reserve.
	ErrOrderTooLarge = errors.New("order too large: exceeds 50% of pool reserve")

	ErrRoundNotActive = errors.New("round is no longer accepting orders")
	ErrRoundNotClosed = errors.New("round is not closed")
	ErrAlreadyClaimed = errors.New("settlement already claimed")
	ErrNoPayout       = errors.New("no payout available to claim")

	ErrUpstreamUnavailable = errors.New("valuation feed unavailable")
)
