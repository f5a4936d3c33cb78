package transaction

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/domain/affiliate"
	"github.com/eksporyuk/affiliate-api/internal/domain/catalog"
	"github.com/eksporyuk/affiliate-api/internal/domain/commission"
)

// Service drives checkout creation and payment confirmation, handing
// completed sales to the commission ledger writer.
type Service struct {
	repo       *Repository
	catalog    *catalog.Repository
	affiliates *affiliate.Service
	writer     *commission.Writer
}

func NewService(repo *Repository, catalogRepo *catalog.Repository, affiliates *affiliate.Service, writer *commission.Writer) *Service {
	return &Service{
		repo:       repo,
		catalog:    catalogRepo,
		affiliates: affiliates,
		writer:     writer,
	}
}

// Checkout opens a PENDING transaction. The referral token is resolved
// up front and attributed on the transaction; an unknown or unapproved
// token silently produces a direct sale.
func (s *Service) Checkout(ctx context.Context, buyerUserID, itemID uuid.UUID, amount int64, referralToken string) (*Transaction, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := s.catalog.GetByID(ctx, itemID); err != nil {
		return nil, err
	}

	t := &Transaction{
		BuyerUserID:    buyerUserID,
		SellableItemID: itemID,
		Amount:         amount,
		Status:         StatusPending,
	}

	if referralToken != "" {
		ident, err := s.affiliates.Resolve(ctx, referralToken)
		if err != nil {
			return nil, err
		}
		if ident != nil {
			t.AffiliateIdentityID = uuid.NullUUID{UUID: ident.ID, Valid: true}
		} else {
			log.Debug().Str("token", referralToken).Msg("referral token did not resolve, direct sale")
		}
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	log.Info().
		Str("transaction_id", t.ID.String()).
		Str("item_id", itemID.String()).
		Int64("amount", amount).
		Bool("has_affiliate", t.AffiliateIdentityID.Valid).
		Msg("checkout created")
	return t, nil
}

// ConfirmPayment applies the gateway's verdict. It is replay-safe: a
// transaction already in the confirmed status falls through to the
// commission step, so retried webhooks can finish a commission write
// that failed after the status flip.
func (s *Service) ConfirmPayment(ctx context.Context, transactionID uuid.UUID, status Status) (*Transaction, error) {
	if status != StatusSuccess && status != StatusFailed {
		return nil, ErrInvalidTransition
	}

	t, err := s.repo.GetByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch {
	case t.Status == StatusPending:
		applied, err := s.repo.UpdateStatus(ctx, transactionID, StatusPending, status)
		if err != nil {
			return nil, err
		}
		if applied {
			t.Status = status
		} else {
			// Lost the race to a concurrent webhook; reload.
			if t, err = s.repo.GetByID(ctx, transactionID); err != nil {
				return nil, err
			}
		}
	case t.Status == status:
		// Replay of an already-applied confirmation.
	default:
		return nil, ErrInvalidTransition
	}

	if t.Status == StatusSuccess {
		// Commission failures propagate so the gateway retries the
		// webhook; the write is idempotent per transaction.
		if err := s.recordCommission(ctx, t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Refund marks a successful transaction refunded. Historical commission
// entries are left intact; clawbacks are an explicit admin action.
func (s *Service) Refund(ctx context.Context, transactionID uuid.UUID) (*Transaction, error) {
	applied, err := s.repo.UpdateStatus(ctx, transactionID, StatusSuccess, StatusRefunded)
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, ErrInvalidTransition
	}
	log.Info().Str("transaction_id", transactionID.String()).Msg("transaction refunded")
	return s.repo.GetByID(ctx, transactionID)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) recordCommission(ctx context.Context, t *Transaction) error {
	if !t.AffiliateIdentityID.Valid {
		return nil
	}

	ident, err := s.affiliates.Get(ctx, t.AffiliateIdentityID.UUID)
	if err != nil {
		if errors.Is(err, affiliate.ErrNotFound) {
			// Attribution points at a vanished identity; the sale
			// stands, the commission does not.
			log.Warn().
				Str("transaction_id", t.ID.String()).
				Str("affiliate_id", t.AffiliateIdentityID.UUID.String()).
				Msg("attributed affiliate no longer exists")
			return nil
		}
		return err
	}

	item, err := s.catalog.GetByID(ctx, t.SellableItemID)
	if err != nil {
		if errors.Is(err, catalog.ErrItemNotFound) {
			log.Warn().
				Str("transaction_id", t.ID.String()).
				Msg("sellable item missing, commission resolves to zero")
			return nil
		}
		return err
	}

	// Live checkout always resolves from catalog fields; legacy
	// overrides apply only during import and reconciliation.
	res := commission.Resolve(item, t.Amount)

	sale := commission.Sale{
		TransactionID:     t.ID,
		TransactionStatus: string(StatusSuccess),
		Affiliate:         ident,
		Resolution:        res,
	}
	if t.ExternalTransactionID.Valid {
		sale.ExternalTransactionID = t.ExternalTransactionID.String
	}

	_, err = s.writer.Record(ctx, sale)
	return err
}

// ListByStatus pages transactions for the admin surface.
func (s *Service) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}
