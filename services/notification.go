//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_service.go -package=mocks
package services

import (
	"context"
	"log/slog"
	"time"

	"careerlink/contract"
	"careerlink/domain"
	"careerlink/domain/event"
	apperrors "careerlink/errors"
	"careerlink/internal/metrics"
	"careerlink/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type INotificationService interface {
	Notify(ctx context.Context, cmd domain.NotifyCommand) (domain.Notification, error)
	List(ctx context.Context, recipientID string) ([]domain.Notification, int, error)
	MarkAsRead(ctx context.Context, cmd domain.NotificationActionCommand) (domain.Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, cmd domain.NotificationActionCommand) error
}

// NotificationService converts domain events into persisted notifications
// and fans them out to live connections. Persistence is unconditional and
// happens first: a notification must survive even total delivery failure,
// so retrieval on the next login naturally surfaces anything missed. There
// is no queued state for notifications for the same reason.
type NotificationService struct {
	log           *slog.Logger
	validate      *validator.Validate
	notifications repositories.INotificationRepository
	mux           contract.IMultiplexer
	listLimit     int
}

func NewNotificationService(
	log *slog.Logger,
	notifications repositories.INotificationRepository,
	mux contract.IMultiplexer,
	listLimit int,
) *NotificationService {
	return &NotificationService{
		log:           log,
		validate:      validator.New(),
		notifications: notifications,
		mux:           mux,
		listLimit:     listLimit,
	}
}

// Notify persists first, then attempts the live push. High and urgent
// priorities carry an escalation contract for the client (toast, desktop
// alert); normal stays on the unread badge.
func (s *NotificationService) Notify(ctx context.Context, cmd domain.NotifyCommand) (domain.Notification, error) {
	if cmd.Priority == "" {
		cmd.Priority = domain.PriorityNormal
	}
	if err := s.validate.Struct(cmd); err != nil {
		return domain.Notification{}, apperrors.NewValidation("notify payload: %v", err)
	}

	n := domain.Notification{
		ID:          uuid.New(),
		RecipientID: cmd.RecipientID,
		Type:        cmd.Type,
		Title:       cmd.Title,
		Message:     cmd.Message,
		Priority:    cmd.Priority,
		ActionRef:   cmd.ActionRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.notifications.Store(n); err != nil {
		return domain.Notification{}, apperrors.NewPersistence("notification store", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Priority)).Inc()

	delivered := s.mux.PushToUser(ctx, n.RecipientID, event.NewNotification{
		Notification: n,
		Escalation:   domain.EscalationFor(n.Priority),
	})
	if !delivered {
		s.log.Debug("Recipient not live, notification awaits next retrieval",
			"recipient_id", n.RecipientID, "type", n.Type)
	}
	return n, nil
}

// List returns the recipient's notifications newest first, with the unread
// count for the badge.
func (s *NotificationService) List(ctx context.Context, recipientID string) ([]domain.Notification, int, error) {
	notifications, err := s.notifications.ListFor(recipientID, s.listLimit)
	if err != nil {
		return nil, 0, apperrors.NewPersistence("notification list", err)
	}
	unread, err := s.notifications.CountUnread(recipientID)
	if err != nil {
		return nil, 0, apperrors.NewPersistence("notification unread count", err)
	}
	return notifications, unread, nil
}

func (s *NotificationService) MarkAsRead(ctx context.Context, cmd domain.NotificationActionCommand) (domain.Notification, error) {
	n, err := s.notifications.MarkRead(cmd.UserID, cmd.NotificationID)
	if err != nil {
		return domain.Notification{}, err
	}
	s.mux.PushToUser(ctx, cmd.UserID, event.NotificationMarkedRead{NotificationID: n.ID})
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	count, err := s.notifications.MarkAllRead(recipientID)
	if err != nil {
		return 0, apperrors.NewPersistence("notification mark all read", err)
	}
	s.mux.PushToUser(ctx, recipientID, event.AllNotificationsMarkedRead{Count: count})
	return count, nil
}

func (s *NotificationService) Delete(ctx context.Context, cmd domain.NotificationActionCommand) error {
	if err := s.notifications.Delete(cmd.UserID, cmd.NotificationID); err != nil {
		return err
	}
	s.mux.PushToUser(ctx, cmd.UserID, event.NotificationDeleted{NotificationID: cmd.NotificationID})
	return nil
}
