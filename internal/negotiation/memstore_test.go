package negotiation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"negotiation-service/internal/models"
)

// memStore is an in-memory Store with the same atomicity semantics as the
// Postgres store: version-checked negotiation writes and a compare-and-swap
// redemption. All methods hold one mutex, so each call is atomic.
type memStore struct {
	mu       sync.Mutex
	projects map[string]*models.Project
	negos    map[string]*models.Negotiation
	ledgers  map[string][]models.Offer
	codes    map[string]*models.DiscountCode
	byNego   map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]*models.Project),
		negos:    make(map[string]*models.Negotiation),
		ledgers:  make(map[string][]models.Offer),
		codes:    make(map[string]*models.DiscountCode),
		byNego:   make(map[string]string),
	}
}

func (m *memStore) addProject(id, sellerID string, listPrice int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[id] = &models.Project{ID: id, SellerID: sellerID, ListPrice: listPrice}
}

func (m *memStore) GetProject(_ context.Context, projectID string) (*models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[projectID]
	if !ok {
		return nil, ErrProjectNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) CreateNegotiation(_ context.Context, n *models.Negotiation, first *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.negos {
		if existing.BuyerID == n.BuyerID && existing.ProjectID == n.ProjectID &&
			existing.Status == models.NegotiationStatusActive {
			return ErrDuplicateActiveNegotiation
		}
	}
	cp := *n
	m.negos[n.ID] = &cp
	m.ledgers[n.ID] = []models.Offer{*first}
	return nil
}

func (m *memStore) GetNegotiation(_ context.Context, id string) (*models.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.negos[id]
	if !ok {
		return nil, ErrNegotiationNotFound
	}
	cp := *n
	return &cp, nil
}

func (m *memStore) GetLedger(_ context.Context, negotiationID string) ([]models.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ledger := m.ledgers[negotiationID]
	out := make([]models.Offer, len(ledger))
	copy(out, ledger)
	return out, nil
}

func (m *memStore) AppendOffer(_ context.Context, n *models.Negotiation, entry *models.Offer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.negos[n.ID]
	if !ok {
		return ErrNegotiationNotFound
	}
	if stored.Version != n.Version {
		return ErrConcurrentModification
	}
	if entry.Sequence != len(m.ledgers[n.ID])+1 {
		return ErrInvalidSequence
	}
	m.ledgers[n.ID] = append(m.ledgers[n.ID], *entry)
	cp := *n
	cp.Version++
	m.negos[n.ID] = &cp
	n.Version++
	return nil
}

func (m *memStore) AcceptNegotiation(_ context.Context, n *models.Negotiation, entry *models.Offer, code *models.DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.negos[n.ID]
	if !ok {
		return ErrNegotiationNotFound
	}
	if stored.Version != n.Version || stored.Status != models.NegotiationStatusActive {
		return ErrConcurrentModification
	}
	if entry.Sequence != len(m.ledgers[n.ID])+1 {
		return ErrInvalidSequence
	}
	if _, exists := m.byNego[n.ID]; exists {
		return fmt.Errorf("code already issued for negotiation %s", n.ID)
	}
	m.ledgers[n.ID] = append(m.ledgers[n.ID], *entry)
	cp := *n
	cp.Version++
	m.negos[n.ID] = &cp
	ccp := *code
	m.codes[code.Code] = &ccp
	m.byNego[n.ID] = code.Code
	n.Version++
	return nil
}

func (m *memStore) MarkExpired(_ context.Context, n *models.Negotiation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.negos[n.ID]
	if !ok {
		return ErrNegotiationNotFound
	}
	if stored.Version != n.Version || stored.Status != models.NegotiationStatusActive {
		return ErrConcurrentModification
	}
	stored.Status = models.NegotiationStatusExpired
	stored.Version++
	n.Status = models.NegotiationStatusExpired
	n.Version++
	return nil
}

func (m *memStore) ListByBuyer(_ context.Context, buyerID string) ([]models.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Negotiation
	for _, n := range m.negos {
		if n.BuyerID == buyerID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) ListBySeller(_ context.Context, sellerID string) ([]models.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Negotiation
	for _, n := range m.negos {
		if n.SellerID == sellerID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) ListStaleActive(_ context.Context, cutoff time.Time, limit int) ([]models.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Negotiation
	for _, n := range m.negos {
		if n.Status == models.NegotiationStatusActive && n.ExpiresAt.Before(cutoff) {
			out = append(out, *n)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) ListActive(_ context.Context) ([]models.Negotiation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Negotiation
	for _, n := range m.negos {
		if n.Status == models.NegotiationStatusActive {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (m *memStore) GetCode(_ context.Context, code string) (*models.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetCodeByNegotiation(_ context.Context, negotiationID string) (*models.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.byNego[negotiationID]
	if !ok {
		return nil, ErrCodeNotFound
	}
	cp := *m.codes[code]
	return &cp, nil
}

func (m *memStore) CreateCode(_ context.Context, code *models.DiscountCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byNego[code.NegotiationID]; exists {
		return fmt.Errorf("code already issued for negotiation %s", code.NegotiationID)
	}
	cp := *code
	m.codes[code.Code] = &cp
	m.byNego[code.NegotiationID] = code.Code
	return nil
}

// RedeemCode mirrors the store's single conditional update: the status check
// and flip happen under one lock, so only one caller can win.
func (m *memStore) RedeemCode(_ context.Context, code, projectID, orderID string, now time.Time) (*models.DiscountCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if c.ProjectID != projectID {
		return nil, ErrProjectMismatch
	}
	switch c.Status {
	case models.CodeStatusRedeemed:
		return nil, ErrCodeAlreadyRedeemed
	case models.CodeStatusVoided:
		return nil, ErrCodeVoided
	case models.CodeStatusExpired:
		return nil, ErrCodeExpired
	}
	if now.After(c.ExpiresAt) {
		return nil, ErrCodeExpired
	}
	c.Status = models.CodeStatusRedeemed
	c.OrderID = orderID
	redeemedAt := now
	c.RedeemedAt = &redeemedAt
	cp := *c
	return &cp, nil
}

func (m *memStore) MarkExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var flipped int64
	for _, c := range m.codes {
		if c.Status == models.CodeStatusIssued && c.ExpiresAt.Before(now) {
			c.Status = models.CodeStatusExpired
			flipped++
		}
	}
	return flipped, nil
}

func (m *memStore) VoidCode(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[code]
	if !ok {
		return ErrCodeNotFound
	}
	switch c.Status {
	case models.CodeStatusRedeemed:
		return ErrCodeAlreadyRedeemed
	case models.CodeStatusExpired:
		return ErrCodeExpired
	case models.CodeStatusVoided:
		return ErrCodeVoided
	}
	c.Status = models.CodeStatusVoided
	return nil
}
