package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/isdelr/iserve-be/internal/mail"
	"github.com/isdelr/iserve-be/internal/metrics"
)

// Mailer delivers a single message. One attempt, no retries.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// FeedbackServiceProvider defines the interface for feedback delivery.
type FeedbackServiceProvider interface {
	SendFeedback(ctx context.Context, subject, body string) error
}

// FeedbackService forwards user feedback to the support mailbox.
type FeedbackService struct {
	mailer  Mailer
	from    string
	to      string
	metrics metrics.Recorder
}

// NewFeedbackService creates a FeedbackService. A nil mailer disables delivery.
func NewFeedbackService(mailer Mailer, from, to string, rec metrics.Recorder) *FeedbackService {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &FeedbackService{mailer: mailer, from: from, to: to, metrics: rec}
}

// SendFeedback mails "Feedback: <subject>" with body as plain text.
func (s *FeedbackService) SendFeedback(ctx context.Context, subject, body string) error {
	if s.mailer == nil {
		return ErrMailerDisabled
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: feedback is required", ErrInvalidInput)
	}

	msg := mail.Message{
		From:    s.from,
		To:      []string{s.to},
		Subject: "Feedback: " + strings.TrimSpace(subject),
		Body:    body,
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.RecordFeedback(metrics.OutcomeError)
		return fmt.Errorf("send feedback: %w", err)
	}
	s.metrics.RecordFeedback(metrics.OutcomeSuccess)
	return nil
}
