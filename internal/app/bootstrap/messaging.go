package bootstrap

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/lesson-booking-agent/internal/config"
	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/internal/messaging"
	"github.com/wolfman30/lesson-booking-agent/internal/notify"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

const memoryQueueBuffer = 256

// BuildQueue returns the inbound message queue: SQS when a queue URL is set
// and the memory queue is not forced, an in-process queue otherwise.
func BuildQueue(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (conversation.Queue, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || cfg.UseMemoryQueue || strings.TrimSpace(cfg.ConversationQueueURL) == "" {
		logger.Info("using in-process conversation queue")
		return conversation.NewMemoryQueue(memoryQueueBuffer), "memory"
	}
	logger.Info("using sqs conversation queue", "url", cfg.ConversationQueueURL)
	return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.ConversationQueueURL), "sqs"
}

// BuildOutboundSender creates the reply sender and wraps it with outbound
// metrics when an observer is supplied.
func BuildOutboundSender(cfg *appconfig.Config, observer messaging.OutboundObserver, logger *logging.Logger) (messaging.Sender, string) {
	var providerCfg messaging.ProviderConfig
	if cfg != nil {
		providerCfg = messaging.ProviderConfig{
			TwilioAccountSID: cfg.TwilioAccountSID,
			TwilioAuthToken:  cfg.TwilioAuthToken,
			TwilioFromNumber: cfg.TwilioFromNumber,
		}
	}
	sender, provider := messaging.BuildSender(providerCfg, logger)
	if observer != nil {
		sender = messaging.NewObservedSender(sender, observer)
	}
	return sender, provider
}

// BuildEmailSender picks the email transport from EMAIL_PROVIDER. "auto"
// prefers SendGrid when an API key is set, then SES when a sender address is
// set. The result is nil when email is not configured.
func BuildEmailSender(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (notify.EmailSender, string) {
	if cfg == nil {
		return nil, "none"
	}
	if logger == nil {
		logger = logging.Default()
	}
	sendgrid := func() notify.EmailSender {
		if s := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			return s
		}
		return nil
	}
	ses := func() notify.EmailSender {
		if strings.TrimSpace(cfg.SESFromEmail) == "" {
			return nil
		}
		return notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
	case "ses":
		if s := ses(); s != nil {
			return s, "ses"
		}
	case "log":
		return notify.NewStubEmailSender(logger), "log"
	default:
		if s := sendgrid(); s != nil {
			return s, "sendgrid"
		}
		if s := ses(); s != nil {
			return s, "ses"
		}
	}
	logger.Warn("email provider not configured; booking emails disabled", "provider", cfg.EmailProvider)
	return nil, "none"
}
