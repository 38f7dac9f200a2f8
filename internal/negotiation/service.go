package negotiation

import (
	"context"
	"fmt"
	"time"

	"negotiation-service/internal/models"
	"negotiation-service/internal/util"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Store is the persistence contract for the negotiation core. The sqlx
// implementation lives in internal/store; tests use an in-memory fake with
// the same atomicity semantics.
type Store interface {
	GetProject(ctx context.Context, projectID string) (*models.Project, error)

	// CreateNegotiation inserts the negotiation and its initial ledger entry
	// in one atomic unit. It fails with ErrDuplicateActiveNegotiation when an
	// active negotiation already exists for the same buyer and project.
	CreateNegotiation(ctx context.Context, n *models.Negotiation, first *models.Offer) error

	GetNegotiation(ctx context.Context, id string) (*models.Negotiation, error)
	GetLedger(ctx context.Context, negotiationID string) ([]models.Offer, error)

	// AppendOffer persists a ledger entry together with the negotiation's
	// updated denormalized state. The write is conditional on n.Version; a
	// lost race fails with ErrConcurrentModification. On success the store
	// bumps n.Version in place.
	AppendOffer(ctx context.Context, n *models.Negotiation, entry *models.Offer) error

	// AcceptNegotiation atomically appends the accept entry, flips the
	// negotiation to ACCEPTED, and persists the discount code. Either all
	// three happen or none; a negotiation is never observably accepted
	// without a durably issued code.
	AcceptNegotiation(ctx context.Context, n *models.Negotiation, entry *models.Offer, code *models.DiscountCode) error

	// MarkExpired conditionally flips an active negotiation to EXPIRED.
	MarkExpired(ctx context.Context, n *models.Negotiation) error

	ListByBuyer(ctx context.Context, buyerID string) ([]models.Negotiation, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Negotiation, error)
	ListStaleActive(ctx context.Context, cutoff time.Time, limit int) ([]models.Negotiation, error)
	ListActive(ctx context.Context) ([]models.Negotiation, error)

	GetCode(ctx context.Context, code string) (*models.DiscountCode, error)
	GetCodeByNegotiation(ctx context.Context, negotiationID string) (*models.DiscountCode, error)
	CreateCode(ctx context.Context, code *models.DiscountCode) error

	// RedeemCode performs the single conditional update ISSUED -> REDEEMED.
	// It must be a compare-and-swap on status, never read-then-write; the
	// loser of a concurrent race gets ErrCodeAlreadyRedeemed.
	RedeemCode(ctx context.Context, code, projectID, orderID string, now time.Time) (*models.DiscountCode, error)

	// VoidCode flips an issued code to VOIDED; a redeemed code stays redeemed.
	VoidCode(ctx context.Context, code string) error

	// MarkExpiredCodes flips lapsed issued codes to EXPIRED. Dashboard
	// housekeeping; redemption rejects lapsed codes by timestamp anyway.
	MarkExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}

// ActiveIndex is the advisory fast path over the (buyer, project) registry.
// The database partial unique index stays authoritative; a missing or stale
// index entry only costs a round trip, never correctness.
type ActiveIndex interface {
	SetActive(ctx context.Context, buyerID, projectID, negotiationID string, ttl time.Duration) error
	ClearActive(ctx context.Context, buyerID, projectID string) error
	GetActive(ctx context.Context, buyerID, projectID string) (string, error)
}

// Events receives domain events for downstream consumers (seller
// notifications, analytics). Publish failures are logged, never propagated:
// the ledger is the source of truth, the stream is best effort.
type Events interface {
	PublishNegotiationOpened(ctx context.Context, e *models.NegotiationOpenedEvent) error
	PublishOfferCountered(ctx context.Context, e *models.OfferCounteredEvent) error
	PublishNegotiationAccepted(ctx context.Context, e *models.NegotiationAcceptedEvent) error
	PublishNegotiationClosed(ctx context.Context, e *models.NegotiationClosedEvent) error
	PublishCodeRedeemed(ctx context.Context, e *models.CodeRedeemedEvent) error
}

// Config carries the protocol tunables.
type Config struct {
	NegotiationTTL time.Duration
	CodeTTL        time.Duration
	// FloorPercent sets the floor as a percentage of the list price,
	// snapshotted at open time.
	FloorPercent int64
	Rules        Rules
}

// Service owns the negotiation lifecycle: it validates ledger appends,
// applies state transitions, and keeps the registry index in step.
type Service struct {
	store  Store
	index  ActiveIndex
	codes  CodeCache
	events Events
	issuer *Issuer
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the negotiation service. index, codes, and events may
// be nil; all three are optional fast paths around the store.
func NewService(store Store, index ActiveIndex, codes CodeCache, events Events, cfg Config) *Service {
	return &Service{
		store:  store,
		index:  index,
		codes:  codes,
		events: events,
		issuer: NewIssuer(store, cfg.CodeTTL),
		cfg:    cfg,
		logger: util.GetLogger(),
		now:    time.Now,
	}
}

// Issuer exposes the code issuer, mainly for the repair path.
func (s *Service) Issuer() *Issuer { return s.issuer }

// Open starts a negotiation with the buyer's initial offer. The project's
// list price is snapshotted here and never re-read.
func (s *Service) Open(ctx context.Context, buyerID, projectID string, amount int64) (*models.Negotiation, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Open")
	defer span.End()

	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.SellerID == buyerID {
		return nil, ErrOwnProject
	}

	// Advisory duplicate pre-check; the DB unique index is the authority.
	if s.index != nil {
		if existing, err := s.index.GetActive(ctx, buyerID, projectID); err == nil && existing != "" {
			util.NegotiationsRejectedTotal.WithLabelValues("duplicate").Inc()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateActiveNegotiation, existing)
		}
	}

	now := s.now()
	n := &models.Negotiation{
		ID:             ulid.Make().String(),
		ProjectID:      projectID,
		BuyerID:        buyerID,
		SellerID:       project.SellerID,
		ListPrice:      project.ListPrice,
		FloorPrice:     project.ListPrice * s.cfg.FloorPercent / 100,
		Status:         models.NegotiationStatusActive,
		CurrentAmount:  amount,
		CurrentSeq:     1,
		CurrentBy:      models.RoleBuyer,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.cfg.NegotiationTTL),
	}
	first := &models.Offer{
		NegotiationID: n.ID,
		Sequence:      1,
		Kind:          models.OfferKindInitial,
		Amount:        amount,
		ProposedBy:    models.RoleBuyer,
		Timestamp:     now,
	}

	if err := ValidateAppend(n, nil, *first, s.cfg.Rules); err != nil {
		util.NegotiationsRejectedTotal.WithLabelValues("protocol").Inc()
		return nil, err
	}
	if err := s.store.CreateNegotiation(ctx, n, first); err != nil {
		return nil, err
	}

	if s.index != nil {
		if err := s.index.SetActive(ctx, buyerID, projectID, n.ID, s.cfg.NegotiationTTL); err != nil {
			s.logger.Warn("failed to index active negotiation",
				zap.String("negotiation_id", n.ID), zap.Error(err))
		}
	}
	util.NegotiationsOpenedTotal.Inc()
	s.logger.Info("negotiation opened",
		zap.String("negotiation_id", n.ID),
		zap.String("project_id", projectID),
		zap.Int64("offer", amount))

	s.publishOpened(ctx, n, amount)
	return n, nil
}

// Counter appends a counteroffer from either party.
func (s *Service) Counter(ctx context.Context, negotiationID, actorID string, amount int64) (*models.Negotiation, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Counter")
	defer span.End()

	n, ledger, role, err := s.loadActive(ctx, negotiationID, actorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := models.Offer{
		NegotiationID: n.ID,
		Sequence:      len(ledger) + 1,
		Kind:          models.OfferKindCounter,
		Amount:        amount,
		ProposedBy:    role,
		Timestamp:     now,
	}
	if err := ValidateAppend(n, ledger, entry, s.cfg.Rules); err != nil {
		util.OffersRejectedTotal.Inc()
		return nil, err
	}

	n.CurrentAmount = amount
	n.CurrentSeq = entry.Sequence
	n.CurrentBy = role
	n.LastActivityAt = now
	n.ExpiresAt = now.Add(s.cfg.NegotiationTTL)

	if err := s.store.AppendOffer(ctx, n, &entry); err != nil {
		return nil, err
	}

	util.OffersCounteredTotal.Inc()
	s.logger.Info("counteroffer recorded",
		zap.String("negotiation_id", n.ID),
		zap.String("by", role),
		zap.Int64("amount", amount))

	s.publishCountered(ctx, n, &entry)
	return n, nil
}

// Accept closes the negotiation at the open offer and mints the discount
// code. The caller observes ACCEPTED only together with a valid code.
func (s *Service) Accept(ctx context.Context, negotiationID, actorID string) (*models.Negotiation, *models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Accept")
	defer span.End()

	n, ledger, role, err := s.loadActive(ctx, negotiationID, actorID)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	last := LastProposal(ledger)
	entry := models.Offer{
		NegotiationID: n.ID,
		Sequence:      len(ledger) + 1,
		Kind:          models.OfferKindAccept,
		Amount:        last.Amount,
		ProposedBy:    role,
		Timestamp:     now,
	}
	if err := ValidateAppend(n, ledger, entry, s.cfg.Rules); err != nil {
		return nil, nil, err
	}

	code, err := s.issuer.Mint(n, last.Amount, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to mint discount code: %w", err)
	}

	n.Status = models.NegotiationStatusAccepted
	n.CurrentSeq = entry.Sequence
	n.CurrentBy = role
	n.LastActivityAt = now

	if err := s.store.AcceptNegotiation(ctx, n, &entry, code); err != nil {
		return nil, nil, err
	}

	s.clearIndex(ctx, n)
	util.NegotiationsAcceptedTotal.Inc()
	util.CodesIssuedTotal.Inc()
	s.logger.Info("negotiation accepted",
		zap.String("negotiation_id", n.ID),
		zap.Int64("final_price", last.Amount),
		zap.String("code", code.Code))

	s.publishAccepted(ctx, n, code)
	return n, code, nil
}

// Reject closes the negotiation without a deal.
func (s *Service) Reject(ctx context.Context, negotiationID, actorID string) (*models.Negotiation, error) {
	return s.close(ctx, negotiationID, actorID, models.OfferKindReject, models.NegotiationStatusRejected)
}

// Cancel lets either party walk away from an active negotiation.
func (s *Service) Cancel(ctx context.Context, negotiationID, actorID string) (*models.Negotiation, error) {
	return s.close(ctx, negotiationID, actorID, models.OfferKindCancel, models.NegotiationStatusCancelled)
}

func (s *Service) close(ctx context.Context, negotiationID, actorID, kind, status string) (*models.Negotiation, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.close")
	defer span.End()

	n, ledger, role, err := s.loadActive(ctx, negotiationID, actorID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := models.Offer{
		NegotiationID: n.ID,
		Sequence:      len(ledger) + 1,
		Kind:          kind,
		ProposedBy:    role,
		Timestamp:     now,
	}
	if err := ValidateAppend(n, ledger, entry, s.cfg.Rules); err != nil {
		return nil, err
	}

	n.Status = status
	n.CurrentSeq = entry.Sequence
	n.CurrentBy = role
	n.LastActivityAt = now

	if err := s.store.AppendOffer(ctx, n, &entry); err != nil {
		return nil, err
	}

	s.clearIndex(ctx, n)
	if status == models.NegotiationStatusRejected {
		util.NegotiationsRejectedTotal.WithLabelValues("by_party").Inc()
	} else {
		util.NegotiationsCancelledTotal.Inc()
	}
	s.logger.Info("negotiation closed",
		zap.String("negotiation_id", n.ID),
		zap.String("status", status),
		zap.String("by", role))

	s.publishClosed(ctx, n, role)
	return n, nil
}

// Get returns a negotiation with its ledger, surfacing lazy expiry. Only
// participants may read a negotiation.
func (s *Service) Get(ctx context.Context, negotiationID, actorID string) (*models.Negotiation, []models.Offer, error) {
	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, nil, err
	}
	if n.Role(actorID) == "" {
		return nil, nil, ErrNotParticipant
	}
	if n.Expired(s.now()) {
		s.expire(ctx, n)
	}
	ledger, err := s.store.GetLedger(ctx, negotiationID)
	if err != nil {
		return nil, nil, err
	}
	return n, ledger, nil
}

// ListForBuyer returns the buyer's negotiations, newest first.
func (s *Service) ListForBuyer(ctx context.Context, buyerID string) ([]models.Negotiation, error) {
	list, err := s.store.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	s.surfaceExpiry(ctx, list)
	return list, nil
}

// ListForSeller returns negotiations over the seller's projects.
func (s *Service) ListForSeller(ctx context.Context, sellerID string) ([]models.Negotiation, error) {
	list, err := s.store.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	s.surfaceExpiry(ctx, list)
	return list, nil
}

// SweepExpired marks stale active negotiations expired and clears their
// registry entries. Called by the background sweeper; lazy evaluation on
// read/write keeps correctness even when the sweep never runs.
func (s *Service) SweepExpired(ctx context.Context, limit int) (int, error) {
	stale, err := s.store.ListStaleActive(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range stale {
		n := &stale[i]
		if s.expire(ctx, n) {
			swept++
		}
	}
	if _, err := s.store.MarkExpiredCodes(ctx, s.now()); err != nil {
		s.logger.Warn("failed to expire lapsed codes", zap.Error(err))
	}
	return swept, nil
}

// ReconcileIndex rebuilds the advisory registry index from the rows. The
// index is a cache: orphaned entries age out via TTL, missing entries are
// restored here.
func (s *Service) ReconcileIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	active, err := s.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active negotiations: %w", err)
	}
	now := s.now()
	for i := range active {
		n := &active[i]
		ttl := n.ExpiresAt.Sub(now)
		if ttl <= 0 {
			continue
		}
		if err := s.index.SetActive(ctx, n.BuyerID, n.ProjectID, n.ID, ttl); err != nil {
			s.logger.Warn("failed to reconcile index entry",
				zap.String("negotiation_id", n.ID), zap.Error(err))
		}
	}
	s.logger.Info("registry index reconciled", zap.Int("active", len(active)))
	return nil
}

// loadActive fetches a negotiation for mutation: participant check first,
// then lazy expiry, then the active-status gate.
func (s *Service) loadActive(ctx context.Context, negotiationID, actorID string) (*models.Negotiation, []models.Offer, string, error) {
	n, err := s.store.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, nil, "", err
	}
	role := n.Role(actorID)
	if role == "" {
		return nil, nil, "", ErrNotParticipant
	}
	if n.Expired(s.now()) {
		s.expire(ctx, n)
		return nil, nil, "", ErrNegotiationExpired
	}
	if n.Status != models.NegotiationStatusActive {
		if n.Status == models.NegotiationStatusExpired {
			return nil, nil, "", ErrNegotiationExpired
		}
		return nil, nil, "", fmt.Errorf("%w: status is %s", ErrNegotiationNotActive, n.Status)
	}
	ledger, err := s.store.GetLedger(ctx, negotiationID)
	if err != nil {
		return nil, nil, "", err
	}
	return n, ledger, role, nil
}

// expire transitions an active, lapsed negotiation to EXPIRED. Losing the
// version race here is fine: someone else already moved it on.
func (s *Service) expire(ctx context.Context, n *models.Negotiation) bool {
	if err := s.store.MarkExpired(ctx, n); err != nil {
		s.logger.Debug("expiry race lost", zap.String("negotiation_id", n.ID), zap.Error(err))
		return false
	}
	s.clearIndex(ctx, n)
	util.NegotiationsExpiredTotal.Inc()
	s.publishClosed(ctx, n, "")
	return true
}

func (s *Service) surfaceExpiry(ctx context.Context, list []models.Negotiation) {
	now := s.now()
	for i := range list {
		if list[i].Expired(now) {
			s.expire(ctx, &list[i])
		}
	}
}

func (s *Service) clearIndex(ctx context.Context, n *models.Negotiation) {
	if s.index == nil {
		return
	}
	if err := s.index.ClearActive(ctx, n.BuyerID, n.ProjectID); err != nil {
		s.logger.Warn("failed to clear index entry",
			zap.String("negotiation_id", n.ID), zap.Error(err))
	}
}
