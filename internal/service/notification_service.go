package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/mailer"
)

// JobEnrollmentDecision is the job type for request decision emails.
const JobEnrollmentDecision = "enrollment_decision"

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// EnrollmentDecisionPayload carries what the email needs so workers never
// touch the database.
type EnrollmentDecisionPayload struct {
	RequestID    string
	StudentName  string
	StudentEmail string
	ClassName    string
	Status       models.EnrollmentRequestStatus
	Reason       *string
}

// NotificationService turns domain events into queued emails.
type NotificationService struct {
	mailer  mailer.Mailer
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService constructs the service. AttachQueue must be called
// before events are published; until then they are only logged.
func NewNotificationService(m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{mailer: m, metrics: metrics, logger: logger}
}

// AttachQueue sets the queue events are published to.
func (s *NotificationService) AttachQueue(q jobEnqueuer) {
	s.queue = q
}

// EnrollmentDecided enqueues an email to the student. Failures are logged and
// never surface to the caller.
func (s *NotificationService) EnrollmentDecided(_ context.Context, req models.EnrollmentRequestDetail) {
	payload := EnrollmentDecisionPayload{
		RequestID:    req.ID,
		StudentName:  req.StudentName,
		StudentEmail: req.StudentEmail,
		ClassName:    req.ClassName,
		Status:       req.Status,
		Reason:       req.RejectionReason,
	}
	if s.queue == nil {
		s.logger.Warn("notification queue not attached", zap.String("request_id", req.ID))
		return
	}
	if err := s.queue.Enqueue(jobs.Job{Type: JobEnrollmentDecision, Payload: payload}); err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Warn("failed to enqueue notification", zap.String("request_id", req.ID), zap.Error(err))
	}
}

// Handle is the queue handler.
func (s *NotificationService) Handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobEnrollmentDecision:
		payload, ok := job.Payload.(EnrollmentDecisionPayload)
		if !ok {
			s.logger.Error("unexpected payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
			return nil
		}
		err := s.mailer.Send(ctx, enrollmentDecisionMessage(payload))
		s.metrics.RecordNotification(err == nil)
		if err != nil {
			return fmt.Errorf("send enrollment decision: %w", err)
		}
		s.logger.Info("enrollment decision sent", zap.String("request_id", payload.RequestID), zap.String("status", string(payload.Status)))
		return nil
	default:
		s.logger.Warn("unknown job type", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
}

func enrollmentDecisionMessage(p EnrollmentDecisionPayload) mailer.Message {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", p.StudentName)
	switch p.Status {
	case models.EnrollmentRequestApproved:
		fmt.Fprintf(&body, "Your request to join %s was approved. The class now appears on your dashboard.\n", p.ClassName)
	default:
		fmt.Fprintf(&body, "Your request to join %s was not approved.\n", p.ClassName)
		if p.Reason != nil && *p.Reason != "" {
			fmt.Fprintf(&body, "\nReason: %s\n", *p.Reason)
		}
	}

	return mailer.Message{
		To:      mail.Address{Name: p.StudentName, Address: p.StudentEmail},
		Subject: fmt.Sprintf("Enrollment request %s: %s", p.Status, p.ClassName),
		Text:    body.String(),
	}
}
