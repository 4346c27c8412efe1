package notify

import (
	"context"
	"fmt"

	"venuly/internal/apperr"
	"venuly/internal/email"
	"venuly/internal/logger"
	"venuly/internal/models"
)

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Broadcaster pushes a stored notification to the recipient's live streams.
type Broadcaster interface {
	Emit(n models.Notification)
}

var emailedTypes = map[models.NotificationType]bool{
	models.NotifyProposalReceived: true,
	models.NotifyProposalAccepted: true,
	models.NotifyReviewReceived:   true,
	models.NotifyPaymentReceived:  true,
}

// Dispatcher turns domain events into notification rows and, for the
// important ones, emails.
type Dispatcher struct {
	Store   NotificationStore
	Users   UserLookup
	Mailer  email.Sender
	BaseURL string
	Live    Broadcaster
	Logger  *logger.Logger
}

// PublishDomainEvent lets the dispatcher act as an in-process Sink.
func (d *Dispatcher) PublishDomainEvent(ctx context.Context, event models.DomainEvent) error {
	return d.Handle(ctx, event)
}

// Handle is idempotent per event id: a redelivered event neither duplicates
// the row nor re-sends the email.
func (d *Dispatcher) Handle(ctx context.Context, event models.DomainEvent) error {
	n := NotificationFor(event)
	if err := d.Store.CreateNotification(ctx, n); err != nil {
		if apperr.IsUniqueViolation(err) {
			d.Logger.Debug("NOTIFY", fmt.Sprintf("Event %s already dispatched", event.ID))
			return nil
		}
		return fmt.Errorf("store notification: %w", err)
	}

	if d.Live != nil {
		d.Live.Emit(*n)
	}
	if emailedTypes[event.Type] {
		d.sendEmail(ctx, event)
	}
	return nil
}

// NotificationFor is the inbox row an event becomes. The row id is the event id.
func NotificationFor(event models.DomainEvent) *models.Notification {
	return &models.Notification{
		ID:        event.ID,
		UserID:    event.RecipientID,
		Type:      event.Type,
		Title:     event.Title,
		Message:   event.Message,
		Link:      event.Link,
		EntityID:  event.EntityID,
		CreatedAt: event.OccurredAt,
	}
}

func (d *Dispatcher) sendEmail(ctx context.Context, event models.DomainEvent) {
	if d.Mailer == nil || !d.Mailer.Configured() || d.Users == nil {
		return
	}
	user, err := d.Users.GetUserByID(ctx, event.RecipientID)
	if err != nil {
		d.Logger.Warn("NOTIFY", fmt.Sprintf("No recipient %s for %s: %v", event.RecipientID, event.Type, err))
		return
	}

	link := ""
	if event.Link != "" {
		link = d.BaseURL + event.Link
	}
	msg := email.Notification(user.Email, user.Name, event.Title, event.Message, link)
	if err := d.Mailer.Send(ctx, msg); err != nil {
		d.Logger.Error("EMAIL", fmt.Sprintf("Failed to email %s about %s: %v", user.ID, event.Type, err))
	}
}
