package negotiation

import (
	"fmt"

	"negotiation-service/internal/models"
)

// Rules tunes the ledger validation. Defaults come from config.
type Rules struct {
	// StrictNarrowing requires every counter to land strictly between the
	// proposer's own last amount and the counterpart's last amount. When
	// false, a counter only has to differ from the open offer and must not
	// regress past the proposer's own prior amount.
	StrictNarrowing bool
	// MaxRounds bounds the number of priced entries (initial + counters)
	// a ledger may hold. Zero means unlimited.
	MaxRounds int
}

// LastProposal returns the most recent priced entry (initial or counter),
// or nil for an empty ledger.
func LastProposal(ledger []models.Offer) *models.Offer {
	for i := len(ledger) - 1; i >= 0; i-- {
		switch ledger[i].Kind {
		case models.OfferKindInitial, models.OfferKindCounter:
			return &ledger[i]
		}
	}
	return nil
}

// lastAmountBy returns the proposer's most recent priced amount, falling
// back to the list price for a seller who has not countered yet. The seller
// implicitly "offers" the list price by listing the project.
func lastAmountBy(n *models.Negotiation, ledger []models.Offer, role string) int64 {
	for i := len(ledger) - 1; i >= 0; i-- {
		e := &ledger[i]
		if e.ProposedBy != role {
			continue
		}
		if e.Kind == models.OfferKindInitial || e.Kind == models.OfferKindCounter {
			return e.Amount
		}
	}
	return n.ListPrice
}

func pricedEntries(ledger []models.Offer) int {
	count := 0
	for i := range ledger {
		switch ledger[i].Kind {
		case models.OfferKindInitial, models.OfferKindCounter:
			count++
		}
	}
	return count
}

// ValidateAppend checks a prospective ledger entry against the recorded
// ledger. It is pure: no clock, no storage. Callers append only after it
// returns nil.
func ValidateAppend(n *models.Negotiation, ledger []models.Offer, entry models.Offer, rules Rules) error {
	if entry.Sequence != len(ledger)+1 {
		return fmt.Errorf("%w: want %d, got %d", ErrInvalidSequence, len(ledger)+1, entry.Sequence)
	}

	switch entry.Kind {
	case models.OfferKindInitial:
		if len(ledger) != 0 {
			return fmt.Errorf("%w: initial offer on non-empty ledger", ErrInvalidSequence)
		}
		if entry.ProposedBy != models.RoleBuyer {
			return fmt.Errorf("%w: only the buyer opens a negotiation", ErrWrongProposer)
		}
		return checkBounds(n, entry.Amount)

	case models.OfferKindCounter:
		return validateCounter(n, ledger, entry, rules)

	case models.OfferKindAccept, models.OfferKindReject:
		last := LastProposal(ledger)
		if last == nil {
			return fmt.Errorf("%w: nothing to respond to", ErrInvalidSequence)
		}
		// A party cannot accept or reject its own open offer.
		if entry.ProposedBy == last.ProposedBy {
			return fmt.Errorf("%w: %s cannot %s their own offer",
				ErrWrongProposer, last.ProposedBy, entry.Kind)
		}
		return nil

	case models.OfferKindCancel:
		// Either party may walk away at any point.
		return nil

	default:
		return fmt.Errorf("unknown ledger entry kind %q", entry.Kind)
	}
}

func validateCounter(n *models.Negotiation, ledger []models.Offer, entry models.Offer, rules Rules) error {
	last := LastProposal(ledger)
	if last == nil {
		return fmt.Errorf("%w: counter with no open offer", ErrInvalidSequence)
	}
	if entry.ProposedBy == last.ProposedBy {
		return fmt.Errorf("%w: counters must alternate", ErrWrongProposer)
	}
	if rules.MaxRounds > 0 && pricedEntries(ledger) >= rules.MaxRounds {
		return fmt.Errorf("%w: limit %d", ErrTooManyRounds, rules.MaxRounds)
	}
	if err := checkBounds(n, entry.Amount); err != nil {
		return err
	}
	if entry.Amount == last.Amount {
		return fmt.Errorf("%w: counter of %d matches the open offer; accept it instead",
			ErrInvalidCounter, entry.Amount)
	}

	own := lastAmountBy(n, ledger, entry.ProposedBy)
	if rules.StrictNarrowing {
		// The counter must land strictly between both parties' last
		// positions, so every round shrinks the gap.
		lo, hi := own, last.Amount
		if lo > hi {
			lo, hi = hi, lo
		}
		if entry.Amount <= lo || entry.Amount >= hi {
			return fmt.Errorf("%w: %d must lie strictly between %d and %d",
				ErrInvalidCounter, entry.Amount, lo, hi)
		}
		return nil
	}

	// Tolerant mode: no regression past the proposer's own prior position.
	if entry.ProposedBy == models.RoleBuyer && entry.Amount < own {
		return fmt.Errorf("%w: buyer cannot retreat below their prior offer of %d", ErrInvalidCounter, own)
	}
	if entry.ProposedBy == models.RoleSeller && entry.Amount > own {
		return fmt.Errorf("%w: seller cannot retreat above their prior offer of %d", ErrInvalidCounter, own)
	}
	return nil
}

func checkBounds(n *models.Negotiation, amount int64) error {
	if amount < n.FloorPrice || amount > n.ListPrice {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPriceOutOfBounds, amount, n.FloorPrice, n.ListPrice)
	}
	return nil
}
