package negotiation

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"negotiation-service/internal/models"
)

// codePrefix distinguishes negotiation-derived codes from any other code
// family the marketplace may run.
const codePrefix = "NEGO-"

// codeEncoding is Crockford base32: no padding, no ambiguous characters.
var codeEncoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// Issuer mints single-use discount codes from accepted negotiations.
type Issuer struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewIssuer creates an issuer. ttl is the code's redemption horizon,
// independent of the negotiation TTL.
func NewIssuer(store Store, ttl time.Duration) *Issuer {
	return &Issuer{store: store, ttl: ttl, now: time.Now}
}

// Mint builds an unredeemed code record for the negotiation without
// persisting it. The accept path persists it atomically with the status
// flip. 16 random bytes gives 128 bits against enumeration.
func (i *Issuer) Mint(n *models.Negotiation, finalPrice int64, now time.Time) (*models.DiscountCode, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	return &models.DiscountCode{
		Code:          token,
		NegotiationID: n.ID,
		ProjectID:     n.ProjectID,
		BuyerID:       n.BuyerID,
		FinalPrice:    finalPrice,
		Status:        models.CodeStatusIssued,
		IssuedAt:      now,
		ExpiresAt:     now.Add(i.ttl),
	}, nil
}

// Issue returns the code for an accepted negotiation, minting and persisting
// one if it does not exist yet. Re-invocation for the same negotiation
// returns the existing code; two codes are never minted for one negotiation.
func (i *Issuer) Issue(ctx context.Context, n *models.Negotiation) (*models.DiscountCode, error) {
	if n.Status != models.NegotiationStatusAccepted {
		return nil, fmt.Errorf("%w: status is %s", ErrNegotiationNotAccepted, n.Status)
	}
	existing, err := i.store.GetCodeByNegotiation(ctx, n.ID)
	if err == nil {
		return existing, nil
	}
	code, err := i.Mint(n, n.CurrentAmount, i.now())
	if err != nil {
		return nil, err
	}
	if err := i.store.CreateCode(ctx, code); err != nil {
		// Lost a race with a concurrent issue; the stored code wins.
		if existing, getErr := i.store.GetCodeByNegotiation(ctx, n.ID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to persist discount code: %w", err)
	}
	return code, nil
}

func generateToken() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate code entropy: %w", err)
	}
	return codePrefix + codeEncoding.EncodeToString(raw), nil
}
