package negotiation

import (
	"context"
	"errors"
	"time"

	"negotiation-service/internal/models"
	"negotiation-service/internal/util"

	"go.uber.org/zap"
)

// CodeCache is an optional read cache for code previews. Entries are short
// lived and invalidated on redemption; the store row stays authoritative.
type CodeCache interface {
	GetCode(ctx context.Context, code string) (*models.DiscountCode, error)
	SetCode(ctx context.Context, code *models.DiscountCode, ttl time.Duration) error
	InvalidateCode(ctx context.Context, code string) error
}

const previewCacheTTL = 30 * time.Second

// Validate is the read-only checkout preview: it reports the discounted
// price without consuming the code.
func (s *Service) Validate(ctx context.Context, codeStr, projectID string) (*models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Validate")
	defer span.End()

	now := s.now()
	if s.codes != nil {
		if cached, err := s.codes.GetCode(ctx, codeStr); err == nil && cached != nil {
			if err := checkRedeemable(cached, projectID, now); err != nil {
				return nil, err
			}
			return cached, nil
		}
	}

	code, err := s.store.GetCode(ctx, codeStr)
	if err != nil {
		util.CodeValidationsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	}
	if err := checkRedeemable(code, projectID, now); err != nil {
		util.CodeValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if s.codes != nil {
		if err := s.codes.SetCode(ctx, code, previewCacheTTL); err != nil {
			s.logger.Debug("failed to cache code preview", zap.Error(err))
		}
	}
	util.CodeValidationsTotal.WithLabelValues("valid").Inc()
	return code, nil
}

// Redeem atomically consumes the code for a checkout. The state flip is a
// single conditional update in the store; of N concurrent attempts exactly
// one succeeds and the rest get ErrCodeAlreadyRedeemed. Irrevocable.
func (s *Service) Redeem(ctx context.Context, codeStr, projectID, buyerID, orderID string) (*models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Redeem")
	defer span.End()

	now := s.now()
	code, err := s.store.GetCode(ctx, codeStr)
	if err != nil {
		return nil, err
	}
	if buyerID != "" && code.BuyerID != buyerID {
		return nil, ErrBuyerMismatch
	}
	if err := checkRedeemable(code, projectID, now); err != nil {
		return nil, err
	}

	redeemed, err := s.store.RedeemCode(ctx, codeStr, projectID, orderID, now)
	if err != nil {
		if errors.Is(err, ErrCodeAlreadyRedeemed) {
			util.CodeRedemptionConflictsTotal.Inc()
		}
		return nil, err
	}

	if s.codes != nil {
		if err := s.codes.InvalidateCode(ctx, codeStr); err != nil {
			s.logger.Warn("failed to invalidate code cache", zap.Error(err))
		}
	}
	util.CodesRedeemedTotal.Inc()
	s.logger.Info("discount code redeemed",
		zap.String("code", codeStr),
		zap.String("order_id", orderID),
		zap.Int64("final_price", redeemed.FinalPrice))

	s.publishRedeemed(ctx, redeemed)
	return redeemed, nil
}

// Void terminally invalidates an issued code, e.g. after a dispute. Only the
// seller side of the originating negotiation may void. A redeemed code never
// returns to issued and cannot be voided here.
func (s *Service) Void(ctx context.Context, codeStr, actorID string) (*models.DiscountCode, error) {
	ctx, span := util.StartSpan(ctx, "negotiation.Void")
	defer span.End()

	code, err := s.store.GetCode(ctx, codeStr)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetNegotiation(ctx, code.NegotiationID)
	if err != nil {
		return nil, err
	}
	if n.SellerID != actorID {
		return nil, ErrNotParticipant
	}
	if err := s.store.VoidCode(ctx, codeStr); err != nil {
		return nil, err
	}
	if s.codes != nil {
		if err := s.codes.InvalidateCode(ctx, codeStr); err != nil {
			s.logger.Warn("failed to invalidate code cache", zap.Error(err))
		}
	}
	code.Status = models.CodeStatusVoided
	s.logger.Info("discount code voided",
		zap.String("code", codeStr), zap.String("by", actorID))
	return code, nil
}

func checkRedeemable(code *models.DiscountCode, projectID string, now time.Time) error {
	if code.ProjectID != projectID {
		return ErrProjectMismatch
	}
	switch code.Status {
	case models.CodeStatusRedeemed:
		return ErrCodeAlreadyRedeemed
	case models.CodeStatusVoided:
		return ErrCodeVoided
	case models.CodeStatusExpired:
		return ErrCodeExpired
	}
	if now.After(code.ExpiresAt) {
		return ErrCodeExpired
	}
	return nil
}
