package affiliate

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	codeCacheKeyPrefix = "affiliate:code:"
	codeCacheTTL       = 5 * time.Minute
)

// Notifier receives approval-workflow events. Delivery is fire-and-forget.
type Notifier interface {
	NotifyAffiliateApproved(ctx context.Context, userID uuid.UUID)
	NotifyAffiliateRejected(ctx context.Context, userID uuid.UUID)
}

// Service resolves referral tokens and runs the application workflow.
type Service struct {
	repo     *Repository
	redis    *redis.Client
	notifier Notifier
}

// NewService creates the affiliate service. notifier may be nil.
func NewService(repo *Repository, rdb *redis.Client, notifier Notifier) *Service {
	return &Service{repo: repo, redis: rdb, notifier: notifier}
}

// Resolve maps a referral token to an approved affiliate identity.
// A token that is unknown, pending, rejected or retired resolves to
// (nil, nil): the sale proceeds without commission. Only infrastructure
// failures surface as errors.
func (s *Service) Resolve(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	if ident := s.cacheGet(ctx, token); ident != nil {
		return ident, nil
	}

	ident, err := s.repo.GetByReferralCode(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ident.IsApproved() {
		return nil, nil
	}

	s.cacheSet(ctx, token, ident)
	return ident, nil
}

// ResolveLegacy maps a legacy numeric affiliate identifier through the
// legacy_user_map chain. Used by imports and reconciliation, never by
// live checkout. Same fail-open contract as Resolve.
func (s *Service) ResolveLegacy(ctx context.Context, legacyID int64) (*Identity, error) {
	ident, err := s.repo.GetByLegacyExternalID(ctx, legacyID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !ident.IsApproved() {
		return nil, nil
	}
	return ident, nil
}

// ResolveToken accepts either a platform referral code or, when the token
// is purely numeric, a legacy affiliate id.
func (s *Service) ResolveToken(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	if legacyID, err := strconv.ParseInt(token, 10, 64); err == nil {
		return s.ResolveLegacy(ctx, legacyID)
	}
	return s.Resolve(ctx, token)
}

// Apply registers a pending affiliate application for a user.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, referralCode string) (*Identity, error) {
	ident := &Identity{
		UserID:         userID,
		ReferralCode:   strings.TrimSpace(referralCode),
		ApprovalStatus: StatusPending,
	}
	if err := s.repo.Create(ctx, ident); err != nil {
		return nil, err
	}
	log.Info().
		Str("user_id", userID.String()).
		Str("referral_code", ident.ReferralCode).
		Msg("affiliate application created")
	return ident, nil
}

// Approve moves a pending application to APPROVED.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusApproved); err != nil {
		return err
	}
	ident := s.invalidate(ctx, id)
	log.Info().Str("affiliate_id", id.String()).Msg("affiliate approved")
	if s.notifier != nil && ident != nil {
		s.notifier.NotifyAffiliateApproved(ctx, ident.UserID)
	}
	return nil
}

// Reject moves a pending application to REJECTED.
func (s *Service) Reject(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, id, StatusRejected); err != nil {
		return err
	}
	ident := s.invalidate(ctx, id)
	log.Info().Str("affiliate_id", id.String()).Msg("affiliate rejected")
	if s.notifier != nil && ident != nil {
		s.notifier.NotifyAffiliateRejected(ctx, ident.UserID)
	}
	return nil
}

// Retire soft-retires an identity. Existing commission entries keep
// referencing it; future referrals stop resolving.
func (s *Service) Retire(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Retire(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	log.Info().Str("affiliate_id", id.String()).Msg("affiliate retired")
	return nil
}

// MapLegacyUser records (or replaces) a legacy numeric user id mapping.
// Import tooling calls this before reconciliation can repair legacy sales.
func (s *Service) MapLegacyUser(ctx context.Context, legacyUserID int64, userID uuid.UUID) error {
	if err := s.repo.MapLegacyUser(ctx, legacyUserID, userID); err != nil {
		return err
	}
	log.Info().
		Int64("legacy_user_id", legacyUserID).
		Str("user_id", userID.String()).
		Msg("legacy user mapped")
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*Identity, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) cacheGet(ctx context.Context, token string) *Identity {
	if s.redis == nil {
		return nil
	}
	raw, err := s.redis.Get(ctx, codeCacheKeyPrefix+token).Bytes()
	if err != nil {
		return nil
	}
	var ident Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		return nil
	}
	return &ident
}

func (s *Service) cacheSet(ctx context.Context, token string, ident *Identity) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(ident)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, codeCacheKeyPrefix+token, raw, codeCacheTTL).Err(); err != nil {
		log.Warn().Err(err).Str("token", token).Msg("affiliate cache set failed")
	}
}

// invalidate drops the cached referral code and returns the identity so
// callers can reuse it.
func (s *Service) invalidate(ctx context.Context, id uuid.UUID) *Identity {
	ident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	if s.redis != nil {
		s.redis.Del(ctx, codeCacheKeyPrefix+ident.ReferralCode)
	}
	return ident
}
