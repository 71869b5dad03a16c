package notify

import (
	"context"
	"time"

	"github.com/charlesng35/gatekeep/internal/events"
	"github.com/charlesng35/gatekeep/internal/models"
)

// Publisher is the subset of events.Publisher used here.
type Publisher interface {
	Publish(ctx context.Context, event *events.UserEvent) error
}

// EventNotifier publishes account events to a message broker. Tokens are
// never placed on the bus.
type EventNotifier struct {
	publisher Publisher
}

func NewEventNotifier(publisher Publisher) *EventNotifier {
	return &EventNotifier{publisher: publisher}
}

func (n *EventNotifier) UserRegistered(ctx context.Context, user *models.User, _ string) error {
	return n.publisher.Publish(ctx, &events.UserEvent{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Metadata: map[string]any{
			"email":    user.Email,
			"username": user.Username,
			"role_id":  user.RoleID,
		},
	})
}

func (n *EventNotifier) PasswordResetRequested(ctx context.Context, user *models.User, _ string, ttl time.Duration) error {
	return n.publisher.Publish(ctx, &events.UserEvent{
		Type:     events.EventPasswordResetRequested,
		UserID:   user.ID,
		Metadata: map[string]any{"email": user.Email, "expires_in": ttl.String()},
	})
}

func (n *EventNotifier) VerificationRequested(ctx context.Context, user *models.User, _ string, ttl time.Duration) error {
	return n.publisher.Publish(ctx, &events.UserEvent{
		Type:     events.EventVerificationRequested,
		UserID:   user.ID,
		Metadata: map[string]any{"email": user.Email, "expires_in": ttl.String()},
	})
}
