package negotiation

import (
	"context"
	"time"

	"negotiation-service/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func (s *Service) publishOpened(ctx context.Context, n *models.Negotiation, amount int64) {
	if s.events == nil {
		return
	}
	err := s.events.PublishNegotiationOpened(ctx, &models.NegotiationOpenedEvent{
		BaseEvent:     baseEvent(models.EventTypeNegotiationOpened),
		NegotiationID: n.ID,
		ProjectID:     n.ProjectID,
		BuyerID:       n.BuyerID,
		SellerID:      n.SellerID,
		ListPrice:     n.ListPrice,
		OfferAmount:   amount,
	})
	if err != nil {
		s.logger.Error("failed to publish NegotiationOpened event", zap.Error(err))
	}
}

func (s *Service) publishCountered(ctx context.Context, n *models.Negotiation, entry *models.Offer) {
	if s.events == nil {
		return
	}
	err := s.events.PublishOfferCountered(ctx, &models.OfferCounteredEvent{
		BaseEvent:     baseEvent(models.EventTypeOfferCountered),
		NegotiationID: n.ID,
		ProjectID:     n.ProjectID,
		Sequence:      entry.Sequence,
		Amount:        entry.Amount,
		ProposedBy:    entry.ProposedBy,
	})
	if err != nil {
		s.logger.Error("failed to publish OfferCountered event", zap.Error(err))
	}
}

func (s *Service) publishAccepted(ctx context.Context, n *models.Negotiation, code *models.DiscountCode) {
	if s.events == nil {
		return
	}
	err := s.events.PublishNegotiationAccepted(ctx, &models.NegotiationAcceptedEvent{
		BaseEvent:     baseEvent(models.EventTypeNegotiationAccepted),
		NegotiationID: n.ID,
		ProjectID:     n.ProjectID,
		BuyerID:       n.BuyerID,
		SellerID:      n.SellerID,
		FinalPrice:    code.FinalPrice,
		Code:          code.Code,
	})
	if err != nil {
		s.logger.Error("failed to publish NegotiationAccepted event", zap.Error(err))
	}
}

func (s *Service) publishClosed(ctx context.Context, n *models.Negotiation, closedBy string) {
	if s.events == nil {
		return
	}
	eventType := models.EventTypeNegotiationCancelled
	switch n.Status {
	case models.NegotiationStatusRejected:
		eventType = models.EventTypeNegotiationRejected
	case models.NegotiationStatusExpired:
		eventType = models.EventTypeNegotiationExpired
	}
	err := s.events.PublishNegotiationClosed(ctx, &models.NegotiationClosedEvent{
		BaseEvent:     baseEvent(eventType),
		NegotiationID: n.ID,
		ProjectID:     n.ProjectID,
		BuyerID:       n.BuyerID,
		SellerID:      n.SellerID,
		Status:        n.Status,
		ClosedBy:      closedBy,
	})
	if err != nil {
		s.logger.Error("failed to publish NegotiationClosed event", zap.Error(err))
	}
}

func (s *Service) publishRedeemed(ctx context.Context, code *models.DiscountCode) {
	if s.events == nil {
		return
	}
	err := s.events.PublishCodeRedeemed(ctx, &models.CodeRedeemedEvent{
		BaseEvent:     baseEvent(models.EventTypeCodeRedeemed),
		Code:          code.Code,
		NegotiationID: code.NegotiationID,
		ProjectID:     code.ProjectID,
		BuyerID:       code.BuyerID,
		OrderID:       code.OrderID,
		FinalPrice:    code.FinalPrice,
	})
	if err != nil {
		s.logger.Error("failed to publish CodeRedeemed event", zap.Error(err))
	}
}
