package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"negotiation-service/internal/models"
	"negotiation-service/internal/negotiation"
)

// Constraint names from migrations/001_init.sql.
const (
	constraintSingleActive = "ux_negotiations_single_active"
	constraintLedgerSeq    = "offers_pkey"
	constraintCodePerNego  = "ux_discount_codes_negotiation"
)

const insertOfferSQL = `
	INSERT INTO offers (negotiation_id, sequence, kind, amount, proposed_by, proposed_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

// CreateNegotiation inserts a negotiation and its initial ledger entry in
// one transaction. The partial unique index over (buyer_id, project_id)
// WHERE status = 'ACTIVE' is the single-active authority.
func (s *Store) CreateNegotiation(ctx context.Context, n *models.Negotiation, first *models.Offer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO negotiations
			(id, project_id, buyer_id, seller_id, list_price, floor_price, status,
			 current_amount, current_seq, current_by, version, created_at, last_activity_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		n.ID, n.ProjectID, n.BuyerID, n.SellerID, n.ListPrice, n.FloorPrice, n.Status,
		n.CurrentAmount, n.CurrentSeq, n.CurrentBy, n.Version, n.CreatedAt, n.LastActivityAt, n.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err, constraintSingleActive) {
			return negotiation.ErrDuplicateActiveNegotiation
		}
		return fmt.Errorf("failed to insert negotiation: %w", err)
	}

	_, err = tx.ExecContext(ctx, insertOfferSQL,
		first.NegotiationID, first.Sequence, first.Kind, first.Amount, first.ProposedBy, first.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert initial offer: %w", err)
	}

	return tx.Commit()
}

// GetNegotiation retrieves a negotiation by ID
func (s *Store) GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error) {
	var n models.Negotiation
	err := s.db.GetContext(ctx, &n, "SELECT * FROM negotiations WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", negotiation.ErrNegotiationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetLedger retrieves the full offer ledger in sequence order
func (s *Store) GetLedger(ctx context.Context, negotiationID string) ([]models.Offer, error) {
	var offers []models.Offer
	err := s.db.SelectContext(ctx, &offers,
		"SELECT * FROM offers WHERE negotiation_id = $1 ORDER BY sequence", negotiationID)
	return offers, err
}

// AppendOffer appends a ledger entry and writes the negotiation's updated
// state, conditional on the version the caller read. The version check runs
// first: the loser of a concurrent append sees zero rows and gets
// ErrConcurrentModification, never a sequence violation from the ledger PK.
func (s *Store) AppendOffer(ctx context.Context, n *models.Negotiation, entry *models.Offer) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE negotiations
		SET status = $1, current_amount = $2, current_seq = $3, current_by = $4,
		    last_activity_at = $5, expires_at = $6, version = version + 1
		WHERE id = $7 AND version = $8`,
		n.Status, n.CurrentAmount, n.CurrentSeq, n.CurrentBy,
		n.LastActivityAt, n.ExpiresAt, n.ID, n.Version)
	if err != nil {
		return fmt.Errorf("failed to update negotiation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return negotiation.ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx, insertOfferSQL,
		entry.NegotiationID, entry.Sequence, entry.Kind, entry.Amount, entry.ProposedBy, entry.Timestamp)
	if err != nil {
		if isUniqueViolation(err, constraintLedgerSeq) {
			return negotiation.ErrConcurrentModification
		}
		return fmt.Errorf("failed to append offer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	n.Version++
	return nil
}

// AcceptNegotiation flips the negotiation to ACCEPTED, appends the accept
// entry, and persists the discount code — one transaction, so a negotiation
// is never observably accepted without a durably issued code.
func (s *Store) AcceptNegotiation(ctx context.Context, n *models.Negotiation, entry *models.Offer, code *models.DiscountCode) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE negotiations
		SET status = $1, current_seq = $2, current_by = $3, last_activity_at = $4,
		    version = version + 1
		WHERE id = $5 AND version = $6 AND status = $7`,
		n.Status, n.CurrentSeq, n.CurrentBy, n.LastActivityAt,
		n.ID, n.Version, models.NegotiationStatusActive)
	if err != nil {
		return fmt.Errorf("failed to accept negotiation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return negotiation.ErrConcurrentModification
	}

	_, err = tx.ExecContext(ctx, insertOfferSQL,
		entry.NegotiationID, entry.Sequence, entry.Kind, entry.Amount, entry.ProposedBy, entry.Timestamp)
	if err != nil {
		if isUniqueViolation(err, constraintLedgerSeq) {
			return negotiation.ErrConcurrentModification
		}
		return fmt.Errorf("failed to append accept entry: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO discount_codes
			(code, negotiation_id, project_id, buyer_id, final_price, status, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		code.Code, code.NegotiationID, code.ProjectID, code.BuyerID,
		code.FinalPrice, code.Status, code.IssuedAt, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to persist discount code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	n.Version++
	return nil
}

// MarkExpired conditionally flips an active negotiation to EXPIRED.
func (s *Store) MarkExpired(ctx context.Context, n *models.Negotiation) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE negotiations
		SET status = $1, version = version + 1
		WHERE id = $2 AND version = $3 AND status = $4`,
		models.NegotiationStatusExpired, n.ID, n.Version, models.NegotiationStatusActive)
	if err != nil {
		return fmt.Errorf("failed to expire negotiation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return negotiation.ErrConcurrentModification
	}
	n.Status = models.NegotiationStatusExpired
	n.Version++
	return nil
}

// ListByBuyer retrieves a buyer's negotiations, newest first
func (s *Store) ListByBuyer(ctx context.Context, buyerID string) ([]models.Negotiation, error) {
	var list []models.Negotiation
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM negotiations WHERE buyer_id = $1 ORDER BY created_at DESC", buyerID)
	return list, err
}

// ListBySeller retrieves negotiations across a seller's projects
func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]models.Negotiation, error) {
	var list []models.Negotiation
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM negotiations WHERE seller_id = $1 ORDER BY created_at DESC", sellerID)
	return list, err
}

// ListStaleActive retrieves active negotiations whose TTL lapsed before cutoff
func (s *Store) ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Negotiation, error) {
	var list []models.Negotiation
	err := s.db.SelectContext(ctx, &list, `
		SELECT * FROM negotiations
		WHERE status = $1 AND expires_at < $2
		ORDER BY expires_at
		LIMIT $3`,
		models.NegotiationStatusActive, cutoff, limit)
	return list, err
}

// ListActive retrieves all active negotiations, used by the index reconciler
func (s *Store) ListActive(ctx context.Context) ([]models.Negotiation, error) {
	var list []models.Negotiation
	err := s.db.SelectContext(ctx, &list,
		"SELECT * FROM negotiations WHERE status = $1", models.NegotiationStatusActive)
	return list, err
}
