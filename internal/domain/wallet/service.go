package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier receives wallet events after they are committed. Delivery is
// fire-and-forget and must never fail the wallet operation.
type Notifier interface {
	NotifyPendingReleased(ctx context.Context, userID uuid.UUID, amount int64)
	NotifyPendingRejected(ctx context.Context, userID uuid.UUID, amount int64)
	NotifyPayoutProcessed(ctx context.Context, userID uuid.UUID, amount int64, payoutID uuid.UUID)
}

type Service struct {
	repo     *Repository
	notifier Notifier
}

// NewService creates the wallet service. notifier may be nil.
func NewService(repo *Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// Get returns the wallet, or a zero wallet for users without one yet.
// Wallets are created lazily on first commission.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrWalletNotFound) {
		return &Wallet{UserID: userID}, nil
	}
	return w, err
}

func (s *Service) ListLedger(ctx context.Context, userID uuid.UUID, limit, offset int) ([]LedgerEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListLedger(ctx, userID, limit, offset)
}

// ReleasePending approves a held commission into the withdrawable balance.
func (s *Service) ReleasePending(ctx context.Context, userID uuid.UUID, amount int64, referenceID string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := s.repo.ReleasePending(ctx, userID, amount, referenceID, "pending revenue approved"); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("reference_id", referenceID).
		Msg("pending balance released")
	if s.notifier != nil {
		s.notifier.NotifyPendingReleased(ctx, userID, amount)
	}
	return nil
}

// RejectPending removes a held commission without crediting it.
func (s *Service) RejectPending(ctx context.Context, userID uuid.UUID, amount int64, referenceID, note string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	desc := "pending revenue rejected"
	if note != "" {
		desc = desc + ": " + note
	}
	if err := s.repo.RejectPending(ctx, userID, amount, referenceID, desc); err != nil {
		return err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("reference_id", referenceID).
		Msg("pending balance rejected")
	if s.notifier != nil {
		s.notifier.NotifyPendingRejected(ctx, userID, amount)
	}
	return nil
}

// RequestPayout opens a withdrawal request against the available balance.
func (s *Service) RequestPayout(ctx context.Context, userID uuid.UUID, amount int64, method string) (*Payout, error) {
	if amount <= 0 || method == "" {
		return nil, ErrInvalidAmount
	}
	payout, err := s.repo.RequestPayout(ctx, userID, amount, method)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Int64("amount", amount).
		Str("payout_id", payout.ID.String()).
		Msg("payout requested")
	if s.notifier != nil {
		s.notifier.NotifyPayoutProcessed(ctx, userID, amount, payout.ID)
	}
	return payout, nil
}
