// internal/alerts/alerts.go
package alerts

import (
	"context"
	"fmt"

	"recruitsync/internal/common/aws"
	"recruitsync/internal/common/errors"
	"recruitsync/internal/common/logger"
)

// Sender delivers high-signal operator alerts (unresolved country, duplicate
// remote contact). Delivery failures are logged by callers, never fatal.
type Sender interface {
	Send(ctx context.Context, subject, message string) error
}

// Notifier delivers stage-change notes to the recruitment team.
type Notifier interface {
	StageChangeNote(ctx context.Context, candidateName, jobName, stage string) error
}

// SNSSender publishes operator alerts to an SNS topic.
type SNSSender struct {
	client   *aws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSSender(client *aws.SNSClient, topicARN string, log logger.Logger) *SNSSender {
	return &SNSSender{
		client:   client,
		topicARN: topicARN,
		logger:   log.WithFields(map[string]interface{}{"component": "alerts"}),
	}
}

func (s *SNSSender) Send(ctx context.Context, subject, message string) error {
	if err := s.client.PublishToTopic(ctx, s.topicARN, subject, message); err != nil {
		return errors.NewAlertSendError(err)
	}
	s.logger.Info("operator alert published", map[string]interface{}{
		"subject": subject,
	})
	return nil
}

// SESNotifier emails stage-change notes.
type SESNotifier struct {
	client *aws.SESClient
	from   string
	to     string
}

func NewSESNotifier(client *aws.SESClient, from, to string) *SESNotifier {
	return &SESNotifier{client: client, from: from, to: to}
}

func (n *SESNotifier) StageChangeNote(ctx context.Context, candidateName, jobName, stage string) error {
	subject := fmt.Sprintf("Stage change: %s", candidateName)
	body := fmt.Sprintf("%s moved to stage %q on job %q.", candidateName, stage, jobName)
	if err := n.client.SendPlainEmail(ctx, n.from, n.to, subject, body); err != nil {
		return errors.NewAlertSendError(err)
	}
	return nil
}

// NoopSender discards alerts; used in tests and when SNS is disabled.
type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, subject, message string) error { return nil }

// NoopNotifier discards notes; used in tests and when SES is disabled.
type NoopNotifier struct{}

func (NoopNotifier) StageChangeNote(ctx context.Context, candidateName, jobName, stage string) error {
	return nil
}
