package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/eksporyuk/affiliate-api/internal/pkg/money"
)

// Publisher pushes new-notification events to subscribers (in-app feeds,
// websocket bridges). Delivery is best effort.
type Publisher interface {
	PublishNew(ctx context.Context, userID uuid.UUID, n *NotificationResponse, unreadCount int) error
}

// Service handles notification logic
type Service struct {
	repo      Repository
	publisher Publisher
}

// NewService creates notification service. publisher may be nil.
func NewService(repo Repository, publisher Publisher) *Service {
	return &Service{repo: repo, publisher: publisher}
}

// Create creates a notification and publishes it.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, notifType Type, title, body string, data *NotificationData) (*Notification, error) {
	n := &Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      notifType,
		Title:     title,
		IsRead:    false,
		CreatedAt: time.Now(),
	}

	if body != "" {
		n.Body = sql.NullString{String: body, Valid: true}
	}
	n.SetData(data)

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		unread, _ := s.repo.CountUnreadByUser(ctx, userID)
		if err := s.publisher.PublishNew(ctx, userID, NotificationResponseFromEntity(n), unread); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("notification publish failed")
		}
	}

	return n, nil
}

// List returns notifications for user
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*Notification, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetUnreadCount returns unread count
func (s *Service) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnreadByUser(ctx, userID)
}

// MarkAsRead marks single notification as read
func (s *Service) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead marks all notifications as read
func (s *Service) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// --- Helper methods for creating specific notifications ---

// NotifyCommissionEarned notifies an affiliate about a credited commission.
// Fire-and-forget: errors are logged, never returned.
func (s *Service) NotifyCommissionEarned(ctx context.Context, userID uuid.UUID, amount int64, entryID uuid.UUID) {
	_, err := s.Create(ctx, userID, TypeCommissionEarned,
		"Komisi baru diterima",
		"Anda mendapatkan komisi "+money.Format(amount),
		&NotificationData{EntryID: &entryID, Amount: amount},
	)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("commission notification failed")
	}
}

// NotifyCommissionReversed notifies an affiliate about a removed commission.
func (s *Service) NotifyCommissionReversed(ctx context.Context, userID uuid.UUID, amount int64, entryID uuid.UUID) {
	_, err := s.Create(ctx, userID, TypeCommissionReversed,
		"Komisi dibatalkan",
		"Komisi sebesar "+money.Format(amount)+" telah dibatalkan",
		&NotificationData{EntryID: &entryID, Amount: amount},
	)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("reversal notification failed")
	}
}

// NotifyPendingReleased notifies an affiliate that pending funds moved to balance.
func (s *Service) NotifyPendingReleased(ctx context.Context, userID uuid.UUID, amount int64) {
	s.Create(ctx, userID, TypePendingReleased,
		"Dana pending dicairkan",
		money.Format(amount)+" telah dipindahkan ke saldo Anda",
		&NotificationData{Amount: amount},
	)
}

// NotifyPendingRejected notifies an affiliate that pending funds were rejected.
func (s *Service) NotifyPendingRejected(ctx context.Context, userID uuid.UUID, amount int64) {
	s.Create(ctx, userID, TypePendingRejected,
		"Dana pending ditolak",
		money.Format(amount)+" dibatalkan dari saldo pending Anda",
		&NotificationData{Amount: amount},
	)
}

// NotifyPayoutProcessed notifies an affiliate about a completed payout.
func (s *Service) NotifyPayoutProcessed(ctx context.Context, userID uuid.UUID, amount int64, payoutID uuid.UUID) {
	s.Create(ctx, userID, TypePayoutProcessed,
		"Payout diproses",
		"Payout sebesar "+money.Format(amount)+" sedang diproses",
		&NotificationData{PayoutID: &payoutID, Amount: amount},
	)
}

// NotifyAffiliateApproved notifies an applicant about approval.
func (s *Service) NotifyAffiliateApproved(ctx context.Context, userID uuid.UUID) {
	s.Create(ctx, userID, TypeAffiliateApproved,
		"Pendaftaran affiliate disetujui",
		"Selamat! Anda sekarang terdaftar sebagai affiliate",
		nil,
	)
}

// NotifyAffiliateRejected notifies an applicant about rejection.
func (s *Service) NotifyAffiliateRejected(ctx context.Context, userID uuid.UUID) {
	s.Create(ctx, userID, TypeAffiliateRejected,
		"Pendaftaran affiliate ditolak",
		"Mohon maaf, pendaftaran affiliate Anda belum dapat disetujui",
		nil,
	)
}
