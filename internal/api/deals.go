package api

import (
	"context"
	"time"

	"voucher-wallet-go/internal/models"

	"github.com/shopspring/decimal"
)

func (s *LedgerService) CreateDeal(ctx context.Context, req CreateDealRequest) (*models.Deal, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "create_deal", err)
	}

	var expiry *time.Time
	if req.ExpiresInDays > 0 {
		at := s.engine.Now().AddDate(0, 0, req.ExpiresInDays)
		expiry = &at
	}

	deal, err := s.deals.CreateDeal(ctx, req.MerchantId, req.Title, parsePoints(req.PointsOffered), expiry)
	if err != nil {
		return nil, finish(ctx, "create_deal", err)
	}
	return deal, nil
}

func (s *LedgerService) RequestDeal(ctx context.Context, req RequestDealRequest) (*models.DealRequest, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "request_deal", err)
	}

	request, err := s.deals.RequestDeal(ctx, req.RequesterId, req.DealId, parsePoints(req.PointsRequested), req.Message)
	if err != nil {
		return nil, finish(ctx, "request_deal", err)
	}
	return request, nil
}

func (s *LedgerService) AcceptDealRequest(ctx context.Context, req DealDecisionRequest) (*models.DealConfirmation, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "accept_deal_request", err)
	}

	confirmation, err := s.deals.AcceptRequest(ctx, req.DealId, req.RequestId, req.OwnerId)
	if err != nil {
		return nil, finish(ctx, "accept_deal_request", err)
	}
	return confirmation, nil
}

func (s *LedgerService) RejectDealRequest(ctx context.Context, req DealDecisionRequest) error {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return finish(ctx, "reject_deal_request", err)
	}
	return finish(ctx, "reject_deal_request", s.deals.RejectRequest(ctx, req.DealId, req.RequestId, req.OwnerId))
}

func (s *LedgerService) CancelDealRequest(ctx context.Context, req CancelDealRequestRequest) error {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return finish(ctx, "cancel_deal_request", err)
	}
	return finish(ctx, "cancel_deal_request", s.deals.CancelRequest(ctx, req.RequestId, req.RequesterId))
}

// CompleteDealConfirmation settles a confirmed deal between the two merchant wallets
func (s *LedgerService) CompleteDealConfirmation(ctx context.Context, req ConfirmationRequest) (*models.TransferResult, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return nil, finish(ctx, "complete_deal_confirmation", err)
	}

	result, err := s.deals.CompleteConfirmation(ctx, req.ConfirmationId, req.CallerId)
	if err != nil {
		return nil, finish(ctx, "complete_deal_confirmation", err)
	}
	return result, nil
}

// CancelDealConfirmation returns the points released back to the deal
func (s *LedgerService) CancelDealConfirmation(ctx context.Context, req ConfirmationRequest) (decimal.Decimal, error) {
	ctx = operation(ctx)
	if err := validateRequest(req); err != nil {
		return decimal.Zero, finish(ctx, "cancel_deal_confirmation", err)
	}

	released, err := s.deals.CancelConfirmation(ctx, req.ConfirmationId, req.CallerId)
	if err != nil {
		return decimal.Zero, finish(ctx, "cancel_deal_confirmation", err)
	}
	return released, nil
}
