package negotiation

import (
	"testing"
	"time"

	"negotiation-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func testNegotiation() *models.Negotiation {
	return &models.Negotiation{
		ID:         "nego-1",
		ProjectID:  "project-1",
		BuyerID:    "buyer-1",
		SellerID:   "seller-1",
		ListPrice:  1000,
		FloorPrice: 700,
		Status:     models.NegotiationStatusActive,
	}
}

func entry(seq int, kind string, amount int64, by string) models.Offer {
	return models.Offer{
		NegotiationID: "nego-1",
		Sequence:      seq,
		Kind:          kind,
		Amount:        amount,
		ProposedBy:    by,
		Timestamp:     time.Now(),
	}
}

func TestValidateAppendInitial(t *testing.T) {
	n := testNegotiation()
	strict := Rules{StrictNarrowing: true}

	tests := []struct {
		name    string
		entry   models.Offer
		wantErr error
	}{
		{"valid initial", entry(1, models.OfferKindInitial, 750, models.RoleBuyer), nil},
		{"at floor", entry(1, models.OfferKindInitial, 700, models.RoleBuyer), nil},
		{"at list", entry(1, models.OfferKindInitial, 1000, models.RoleBuyer), nil},
		{"below floor", entry(1, models.OfferKindInitial, 650, models.RoleBuyer), ErrPriceOutOfBounds},
		{"above list", entry(1, models.OfferKindInitial, 1100, models.RoleBuyer), ErrPriceOutOfBounds},
		{"seller cannot open", entry(1, models.OfferKindInitial, 900, models.RoleSeller), ErrWrongProposer},
		{"wrong sequence", entry(2, models.OfferKindInitial, 750, models.RoleBuyer), ErrInvalidSequence},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAppend(n, nil, tt.entry, strict)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateAppendCounter(t *testing.T) {
	n := testNegotiation()
	strict := Rules{StrictNarrowing: true}
	ledger := []models.Offer{
		entry(1, models.OfferKindInitial, 750, models.RoleBuyer),
	}

	t.Run("seller narrows from list", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(2, models.OfferKindCounter, 900, models.RoleSeller), strict)
		assert.NoError(t, err)
	})

	t.Run("buyer cannot counter own offer", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(2, models.OfferKindCounter, 800, models.RoleBuyer), strict)
		assert.ErrorIs(t, err, ErrWrongProposer)
	})

	t.Run("no-op counter rejected", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(2, models.OfferKindCounter, 750, models.RoleSeller), strict)
		assert.ErrorIs(t, err, ErrInvalidCounter)
	})

	t.Run("seller counter below buyer offer widens the gap", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(2, models.OfferKindCounter, 720, models.RoleSeller), strict)
		assert.ErrorIs(t, err, ErrInvalidCounter)
	})

	longLedger := []models.Offer{
		entry(1, models.OfferKindInitial, 750, models.RoleBuyer),
		entry(2, models.OfferKindCounter, 900, models.RoleSeller),
	}

	t.Run("buyer narrows toward seller", func(t *testing.T) {
		err := ValidateAppend(n, longLedger, entry(3, models.OfferKindCounter, 800, models.RoleBuyer), strict)
		assert.NoError(t, err)
	})

	t.Run("buyer regressing below own prior offer", func(t *testing.T) {
		err := ValidateAppend(n, longLedger, entry(3, models.OfferKindCounter, 720, models.RoleBuyer), strict)
		assert.ErrorIs(t, err, ErrInvalidCounter)
	})

	t.Run("buyer jumping past seller position", func(t *testing.T) {
		err := ValidateAppend(n, longLedger, entry(3, models.OfferKindCounter, 950, models.RoleBuyer), strict)
		assert.ErrorIs(t, err, ErrInvalidCounter)
	})

	t.Run("tolerant mode allows overshooting counter", func(t *testing.T) {
		tolerant := Rules{StrictNarrowing: false}
		err := ValidateAppend(n, longLedger, entry(3, models.OfferKindCounter, 950, models.RoleBuyer), tolerant)
		assert.NoError(t, err)
	})

	t.Run("round limit", func(t *testing.T) {
		limited := Rules{StrictNarrowing: true, MaxRounds: 2}
		err := ValidateAppend(n, longLedger, entry(3, models.OfferKindCounter, 800, models.RoleBuyer), limited)
		assert.ErrorIs(t, err, ErrTooManyRounds)
	})
}

func TestValidateAppendAcceptReject(t *testing.T) {
	n := testNegotiation()
	strict := Rules{StrictNarrowing: true}
	ledger := []models.Offer{
		entry(1, models.OfferKindInitial, 750, models.RoleBuyer),
		entry(2, models.OfferKindCounter, 900, models.RoleSeller),
	}

	t.Run("buyer accepts seller counter", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(3, models.OfferKindAccept, 900, models.RoleBuyer), strict)
		assert.NoError(t, err)
	})

	t.Run("seller cannot accept own counter", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(3, models.OfferKindAccept, 900, models.RoleSeller), strict)
		assert.ErrorIs(t, err, ErrWrongProposer)
	})

	t.Run("seller cannot reject own counter", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(3, models.OfferKindReject, 0, models.RoleSeller), strict)
		assert.ErrorIs(t, err, ErrWrongProposer)
	})

	t.Run("either party may cancel", func(t *testing.T) {
		assert.NoError(t, ValidateAppend(n, ledger, entry(3, models.OfferKindCancel, 0, models.RoleSeller), strict))
		assert.NoError(t, ValidateAppend(n, ledger, entry(3, models.OfferKindCancel, 0, models.RoleBuyer), strict))
	})

	t.Run("sequence gap rejected", func(t *testing.T) {
		err := ValidateAppend(n, ledger, entry(5, models.OfferKindAccept, 900, models.RoleBuyer), strict)
		assert.ErrorIs(t, err, ErrInvalidSequence)
	})
}
