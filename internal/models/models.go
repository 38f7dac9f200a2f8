package models

import "time"

// Project is the external catalog entry a negotiation is opened against.
// Only the fields the negotiation core needs are read; the rest of the
// catalog lives in the marketplace service.
type Project struct {
	ID        string    `db:"id" json:"id"`
	SellerID  string    `db:"seller_id" json:"seller_id"`
	ListPrice int64     `db:"list_price" json:"list_price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Negotiation is one bounded price discussion between a buyer and a seller
// over a single project. ListPrice and FloorPrice are snapshotted at open
// time and never re-read from the catalog.
type Negotiation struct {
	ID             string    `db:"id" json:"id"`
	ProjectID      string    `db:"project_id" json:"project_id"`
	BuyerID        string    `db:"buyer_id" json:"buyer_id"`
	SellerID       string    `db:"seller_id" json:"seller_id"`
	ListPrice      int64     `db:"list_price" json:"list_price"`
	FloorPrice     int64     `db:"floor_price" json:"floor_price"`
	Status         string    `db:"status" json:"status"`
	CurrentAmount  int64     `db:"current_amount" json:"current_amount"`
	CurrentSeq     int       `db:"current_seq" json:"current_seq"`
	CurrentBy      string    `db:"current_by" json:"current_by"`
	Version        int64     `db:"version" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
}

// Offer is one immutable ledger entry. Sequence numbers per negotiation are
// contiguous starting at 1; entries are never modified or removed.
type Offer struct {
	NegotiationID string    `db:"negotiation_id" json:"negotiation_id"`
	Sequence      int       `db:"sequence" json:"sequence"`
	Kind          string    `db:"kind" json:"kind"`
	Amount        int64     `db:"amount" json:"amount"`
	ProposedBy    string    `db:"proposed_by" json:"proposed_by"`
	Timestamp     time.Time `db:"proposed_at" json:"proposed_at"`
}

// DiscountCode is the single-use token minted from an accepted negotiation.
// FinalPrice is copied from the accepted offer and never recomputed.
type DiscountCode struct {
	Code          string     `db:"code" json:"code"`
	NegotiationID string     `db:"negotiation_id" json:"negotiation_id"`
	ProjectID     string     `db:"project_id" json:"project_id"`
	BuyerID       string     `db:"buyer_id" json:"buyer_id"`
	FinalPrice    int64      `db:"final_price" json:"final_price"`
	Status        string     `db:"status" json:"status"`
	OrderID       string     `db:"order_id" json:"order_id,omitempty"`
	IssuedAt      time.Time  `db:"issued_at" json:"issued_at"`
	ExpiresAt     time.Time  `db:"expires_at" json:"expires_at"`
	RedeemedAt    *time.Time `db:"redeemed_at" json:"redeemed_at,omitempty"`
}

// Negotiation statuses. ACTIVE is the only non-terminal state.
const (
	NegotiationStatusActive    = "ACTIVE"
	NegotiationStatusAccepted  = "ACCEPTED"
	NegotiationStatusRejected  = "REJECTED"
	NegotiationStatusExpired   = "EXPIRED"
	NegotiationStatusCancelled = "CANCELLED"
)

// Offer kinds.
const (
	OfferKindInitial = "INITIAL"
	OfferKindCounter = "COUNTER"
	OfferKindAccept  = "ACCEPT"
	OfferKindReject  = "REJECT"
	OfferKindCancel  = "CANCEL"
)

// Proposer roles.
const (
	RoleBuyer  = "BUYER"
	RoleSeller = "SELLER"
)

// Discount code statuses.
const (
	CodeStatusIssued   = "ISSUED"
	CodeStatusRedeemed = "REDEEMED"
	CodeStatusExpired  = "EXPIRED"
	CodeStatusVoided   = "VOIDED"
)

// Terminal reports whether a negotiation status admits no further transitions.
func Terminal(status string) bool {
	return status != NegotiationStatusActive
}

// Role returns the role of actorID within the negotiation, or "" if the
// actor is not a participant.
func (n *Negotiation) Role(actorID string) string {
	switch actorID {
	case n.BuyerID:
		return RoleBuyer
	case n.SellerID:
		return RoleSeller
	default:
		return ""
	}
}

// Expired reports whether the negotiation TTL has lapsed at the given instant.
func (n *Negotiation) Expired(now time.Time) bool {
	return n.Status == NegotiationStatusActive && now.After(n.ExpiresAt)
}

// Counterpart returns the opposite role.
func Counterpart(role string) string {
	if role == RoleBuyer {
		return RoleSeller
	}
	return RoleBuyer
}
