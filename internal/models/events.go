package models

import "time"

// Event types
const (
	EventTypeNegotiationOpened    = "NEGOTIATION_OPENED"
	EventTypeOfferCountered       = "OFFER_COUNTERED"
	EventTypeNegotiationAccepted  = "NEGOTIATION_ACCEPTED"
	EventTypeNegotiationRejected  = "NEGOTIATION_REJECTED"
	EventTypeNegotiationCancelled = "NEGOTIATION_CANCELLED"
	EventTypeNegotiationExpired   = "NEGOTIATION_EXPIRED"
	EventTypeCodeIssued           = "CODE_ISSUED"
	EventTypeCodeRedeemed         = "CODE_REDEEMED"
	EventTypeCodeVoided           = "CODE_VOIDED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NegotiationOpenedEvent published when a buyer opens a negotiation
type NegotiationOpenedEvent struct {
	BaseEvent
	NegotiationID string `json:"negotiation_id"`
	ProjectID     string `json:"project_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	ListPrice     int64  `json:"list_price"`
	OfferAmount   int64  `json:"offer_amount"`
}

// OfferCounteredEvent published on every counteroffer
type OfferCounteredEvent struct {
	BaseEvent
	NegotiationID string `json:"negotiation_id"`
	ProjectID     string `json:"project_id"`
	Sequence      int    `json:"sequence"`
	Amount        int64  `json:"amount"`
	ProposedBy    string `json:"proposed_by"`
}

// NegotiationAcceptedEvent published when a negotiation is accepted and a
// discount code has been durably issued
type NegotiationAcceptedEvent struct {
	BaseEvent
	NegotiationID string `json:"negotiation_id"`
	ProjectID     string `json:"project_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	FinalPrice    int64  `json:"final_price"`
	Code          string `json:"code"`
}

// NegotiationClosedEvent published on reject, cancel, and expiry
type NegotiationClosedEvent struct {
	BaseEvent
	NegotiationID string `json:"negotiation_id"`
	ProjectID     string `json:"project_id"`
	BuyerID       string `json:"buyer_id"`
	SellerID      string `json:"seller_id"`
	Status        string `json:"status"`
	ClosedBy      string `json:"closed_by,omitempty"`
}

// CodeRedeemedEvent published when a discount code is consumed at checkout
type CodeRedeemedEvent struct {
	BaseEvent
	Code          string `json:"code"`
	NegotiationID string `json:"negotiation_id"`
	ProjectID     string `json:"project_id"`
	BuyerID       string `json:"buyer_id"`
	OrderID       string `json:"order_id"`
	FinalPrice    int64  `json:"final_price"`
}
