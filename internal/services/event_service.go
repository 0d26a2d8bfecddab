package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/iserve-be/internal/models"
	"github.com/isdelr/iserve-be/internal/repository"
	"github.com/isdelr/iserve-be/internal/websocket"
)

// Event types recorded by the account service.
const (
	EventUserRegister       = "user.register"
	EventUserLogin          = "user.login"
	EventUserLoginFail      = "user.login.fail"
	EventUserUpdate         = "user.update"
	EventUserPasswordChange = "user.password.change"
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error
	GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error)
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Publisher pushes encoded messages to the connections of one account.
type Publisher interface {
	PublishTo(userID string, message []byte)
}

// EventService provides business logic for the account activity log.
type EventService struct {
	repo      repository.EventRepository
	publisher Publisher
	now       func() time.Time
}

// NewEventService creates a new EventService. publisher may be nil.
func NewEventService(repo repository.EventRepository, publisher Publisher) *EventService {
	return &EventService{repo: repo, publisher: publisher, now: time.Now}
}

// CreateEvent stores a new event and pushes it to the account's live connections.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *string) error {
	event := models.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Message:   message,
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}

	if err := s.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if s.publisher != nil && userID != nil {
		s.publisher.PublishTo(*userID, websocket.NewEventMessage(event))
	}
	return nil
}

// GetRecentEvents retrieves the most recent events of one account, or of
// all accounts when userID is empty.
func (s *EventService) GetRecentEvents(ctx context.Context, userID string, limit int) ([]models.Event, error) {
	events, err := s.repo.Recent(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return events, nil
}

// Prune deletes events older than retention and reports how many were removed.
func (s *EventService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.repo.DeleteOlderThan(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return n, nil
}
