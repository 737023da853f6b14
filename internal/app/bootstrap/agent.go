package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/lesson-booking-agent/internal/config"
	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/internal/inventory"
	"github.com/wolfman30/lesson-booking-agent/internal/messaging"
	"github.com/wolfman30/lesson-booking-agent/internal/notify"
	"github.com/wolfman30/lesson-booking-agent/internal/observability/metrics"
	"github.com/wolfman30/lesson-booking-agent/internal/schedule"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// AgentDeps are the process-level resources the booking agent is built from.
type AgentDeps struct {
	Config           *appconfig.Config
	AWS              aws.Config
	Redis            *redis.Client
	BookingMetrics   *metrics.BookingMetrics
	MessagingMetrics *metrics.MessagingMetrics
	Logger           *logging.Logger
}

// Agent bundles the wired booking components.
type Agent struct {
	Location    *time.Location
	Validator   *schedule.Validator
	Coordinator *inventory.Coordinator
	Sessions    *conversation.MemorySessionStore
	Controller  *conversation.Controller
	Sender      messaging.Sender

	cleanup func()
}

// Close stops session timers and releases the slot store.
func (a *Agent) Close() {
	if a == nil {
		return
	}
	if a.Sessions != nil {
		a.Sessions.Close()
	}
	if a.cleanup != nil {
		a.cleanup()
	}
}

// BuildAgent wires validator, inventory, notifications and the dialogue
// controller from configuration.
func BuildAgent(ctx context.Context, deps AgentDeps) (*Agent, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load timezone %q: %w", cfg.Timezone, err)
	}
	tmpl, aliases, err := schedule.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		return nil, err
	}
	validator := schedule.NewValidator(tmpl, schedule.NewCatalog(tmpl, aliases),
		schedule.WithLocation(loc),
		schedule.WithBlackoutMonths(cfg.BlackoutMonths...),
	)

	store, cleanup, err := BuildSlotStore(ctx, cfg, deps.AWS, deps.Redis, logger)
	if err != nil {
		return nil, err
	}
	coordinator := inventory.NewCoordinator(store, validator.Template(),
		inventory.WithLocation(loc),
		inventory.WithLogger(logger),
		inventory.WithRecorder(deps.BookingMetrics),
	)

	var observer messaging.OutboundObserver
	if deps.MessagingMetrics != nil {
		observer = deps.MessagingMetrics
	}
	sender, provider := BuildOutboundSender(cfg, observer, logger)
	email, emailProvider := BuildEmailSender(cfg, deps.AWS, logger)
	notifier := notify.NewService(email, sender, notify.Config{
		StudioName: cfg.StudioName,
		OwnerEmail: cfg.NotifyEmailTo,
		OwnerPhone: messaging.NormalizeE164(cfg.OwnerPhone),
	}, logger)

	sessions := conversation.NewMemorySessionStore(cfg.SessionIdleTimeout,
		conversation.WithSessionLogger(logger),
		conversation.WithEvictionHook(deps.BookingMetrics.ObserveEviction),
	)

	controller := conversation.NewController(conversation.ControllerConfig{
		Validator:       validator,
		Inventory:       coordinator,
		Sessions:        sessions,
		Messenger:       sender,
		Notifier:        notifier,
		Recorder:        deps.BookingMetrics,
		Logger:          logger,
		OwnerIdentity:   messaging.NormalizeE164(cfg.OwnerPhone),
		StudioName:      cfg.StudioName,
		ReengageKeyword: cfg.ReengageKeyword,
	})

	logger.Info("booking agent ready",
		"store", cfg.StoreBackend,
		"sms_provider", provider,
		"email_provider", emailProvider,
		"timezone", loc.String(),
		"idle_timeout", cfg.SessionIdleTimeout.String(),
	)
	return &Agent{
		Location:    loc,
		Validator:   validator,
		Coordinator: coordinator,
		Sessions:    sessions,
		Controller:  controller,
		Sender:      sender,
		cleanup:     cleanup,
	}, nil
}

// BuildWorker wires a queue consumer around the agent's controller. Redis,
// when available, suppresses redelivered provider messages.
func BuildWorker(agent *Agent, queue conversation.Queue, redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) *conversation.Worker {
	opts := []conversation.WorkerOption{}
	if cfg != nil {
		opts = append(opts, conversation.WithWorkerCount(cfg.WorkerCount))
	}
	if redisClient != nil {
		opts = append(opts, conversation.WithProcessedMessages(conversation.NewRedisProcessedStore(redisClient, 0)))
	}
	return conversation.NewWorker(agent.Controller, queue, agent.Sender, logger, opts...)
}
