package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"negotiation-service/internal/models"
	"negotiation-service/internal/negotiation"
)

// GetCode retrieves a discount code by its token
func (s *Store) GetCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := s.db.GetContext(ctx, &dc, "SELECT * FROM discount_codes WHERE code = $1", code)
	if err == sql.ErrNoRows {
		return nil, negotiation.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// GetCodeByNegotiation retrieves the code minted for a negotiation
func (s *Store) GetCodeByNegotiation(ctx context.Context, negotiationID string) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := s.db.GetContext(ctx, &dc,
		"SELECT * FROM discount_codes WHERE negotiation_id = $1", negotiationID)
	if err == sql.ErrNoRows {
		return nil, negotiation.ErrCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &dc, nil
}

// CreateCode persists a discount code. At most one code exists per
// negotiation; a second insert for the same negotiation fails.
func (s *Store) CreateCode(ctx context.Context, code *models.DiscountCode) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_codes
			(code, negotiation_id, project_id, buyer_id, final_price, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		code.Code, code.NegotiationID, code.ProjectID, code.BuyerID,
		code.FinalPrice, code.Status, code.IssuedAt, code.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err, constraintCodePerNego) {
			return fmt.Errorf("code already issued for negotiation %s: %w", code.NegotiationID, err)
		}
		return fmt.Errorf("failed to insert discount code: %w", err)
	}
	return nil
}

// RedeemCode is the atomic consume: a single conditional update flips
// ISSUED to REDEEMED iff the code is unexpired and bound to the project.
// Two concurrent attempts can never both match the WHERE clause.
func (s *Store) RedeemCode(ctx context.Context, code, projectID, orderID string, now time.Time) (*models.DiscountCode, error) {
	var dc models.DiscountCode
	err := s.db.GetContext(ctx, &dc, `
		UPDATE discount_codes
		SET status = $1, order_id = $2, redeemed_at = $3
		WHERE code = $4 AND project_id = $5 AND status = $6 AND expires_at > $3
		RETURNING *`,
		models.CodeStatusRedeemed, orderID, now, code, projectID, models.CodeStatusIssued)
	if err == nil {
		return &dc, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to redeem code: %w", err)
	}

	// No row matched; re-read purely to report which condition failed.
	return nil, s.classifyRedeemFailure(ctx, code, projectID, now)
}

func (s *Store) classifyRedeemFailure(ctx context.Context, code, projectID string, now time.Time) error {
	current, err := s.GetCode(ctx, code)
	if err != nil {
		return err
	}
	switch {
	case current.ProjectID != projectID:
		return negotiation.ErrProjectMismatch
	case current.Status == models.CodeStatusRedeemed:
		return negotiation.ErrCodeAlreadyRedeemed
	case current.Status == models.CodeStatusVoided:
		return negotiation.ErrCodeVoided
	case current.Status == models.CodeStatusExpired || now.After(current.ExpiresAt):
		return negotiation.ErrCodeExpired
	default:
		return negotiation.ErrConcurrentModification
	}
}

// VoidCode terminally invalidates an issued code. Redeemed codes stay
// redeemed; there is no path back to ISSUED.
func (s *Store) VoidCode(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discount_codes SET status = $1
		WHERE code = $2 AND status = $3`,
		models.CodeStatusVoided, code, models.CodeStatusIssued)
	if err != nil {
		return fmt.Errorf("failed to void code: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		current, err := s.GetCode(ctx, code)
		if err != nil {
			return err
		}
		switch current.Status {
		case models.CodeStatusRedeemed:
			return negotiation.ErrCodeAlreadyRedeemed
		case models.CodeStatusExpired:
			return negotiation.ErrCodeExpired
		}
		return negotiation.ErrCodeVoided
	}
	return nil
}

// MarkExpiredCodes flips lapsed issued codes to EXPIRED. Housekeeping for
// dashboards; redemption already rejects lapsed codes by timestamp.
func (s *Store) MarkExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE discount_codes SET status = $1
		WHERE status = $2 AND expires_at < $3`,
		models.CodeStatusExpired, models.CodeStatusIssued, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire codes: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}
