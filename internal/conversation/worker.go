package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

// MessageHandler advances a dialogue by one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg InboundMessage) error
}

// processedMessageStore drops provider retries of a message already handled.
type processedMessageStore interface {
	MarkProcessed(ctx context.Context, messageID string) (bool, error)
}

// Worker consumes inbound jobs from the queue and feeds them to the handler.
type Worker struct {
	handler   MessageHandler
	queue     Queue
	messenger ReplyMessenger
	processed processedMessageStore
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        processedMessageStore
	fallback         string
}

const (
	defaultWorkerCount  = 2
	defaultWaitSeconds  = 2
	defaultBatchSize    = 5
	maxWaitSeconds      = 20
	maxReceiveBatchSize = 10
	deleteTimeout       = 5 * time.Second
	defaultFallback     = "Sorry, I'm having trouble right now. Please reply again in a moment."
)

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedMessages enables duplicate suppression by provider message id.
func WithProcessedMessages(store processedMessageStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

// WithFallbackReply overrides the text sent when a message cannot be handled.
func WithFallbackReply(text string) WorkerOption {
	return func(cfg *workerConfig) {
		if text != "" {
			cfg.fallback = text
		}
	}
}

// NewWorker constructs a queue consumer around handler. messenger may be nil,
// in which case no fallback reply is attempted.
func NewWorker(handler MessageHandler, queue Queue, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if handler == nil {
		panic("conversation: handler cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
		fallback:         defaultFallback,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		handler:   handler,
		queue:     queue,
		messenger: messenger,
		processed: cfg.processed,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(context.WithoutCancel(ctx), msg.ReceiptHandle)

	job, err := decodeJob(msg.Body)
	if err != nil {
		w.logger.Error("dropping undecodable conversation job", "error", err, "msg_id", msg.ID)
		return
	}

	if w.processed != nil && job.Message.MessageID != "" {
		first, err := w.processed.MarkProcessed(ctx, job.Message.MessageID)
		if err != nil {
			w.logger.Warn("processed message lookup failed", "error", err, "job_id", job.ID)
		} else if !first {
			w.logger.Info("skipping duplicate inbound message", "job_id", job.ID, "message_id", job.Message.MessageID)
			return
		}
	}

	w.logger.Debug("worker processing job", "job_id", job.ID, "from", job.Message.From)

	err = w.handler.HandleMessage(ctx, job.Message)
	if err == nil {
		return
	}
	w.logger.Error("conversation job failed", "error", err, "job_id", job.ID)
	if errors.Is(err, ErrReplyFailed) || w.messenger == nil {
		return
	}
	fallback := OutboundReply{
		ConversationID: normalizeIdentity(job.Message.From),
		To:             job.Message.From,
		From:           job.Message.To,
		Body:           w.cfg.fallback,
	}
	if err := w.messenger.SendReply(ctx, fallback); err != nil {
		w.logger.Error("failed to send fallback reply", "error", err, "job_id", job.ID)
	}
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}

	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
