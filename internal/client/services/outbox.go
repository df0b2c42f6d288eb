package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/ledgersync/internal/client/models"
	"github.com/dmitrijs2005/ledgersync/internal/client/notify"
	"github.com/dmitrijs2005/ledgersync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/ledgersync/internal/client/store"
	"github.com/dmitrijs2005/ledgersync/internal/logging"
)

// EnvelopeBuilder signs outgoing messages with the active identity.
type EnvelopeBuilder interface {
	NewEnvelope(msg models.OutgoingMessage, recipientAddress string) (models.Envelope, error)
}

type OutboxConfig struct {
	// MaxAttempts is the number of failed broadcasts after which a message
	// is given up on.
	MaxAttempts int
	// MaxAge gives up on messages queued for longer than this.
	MaxAge        time.Duration
	DrainInterval time.Duration
	// RetryBaseDelay is the wait after the first failed broadcast of a
	// message. It doubles per failure up to RetryMaxDelay.
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

const (
	defaultRetryBaseDelay = 5 * time.Second
	defaultRetryMaxDelay  = 5 * time.Minute
)

// QueuedItem is a signed message waiting for delivery to one recipient.
type QueuedItem struct {
	ID         string
	Recipient  models.Recipient
	Envelope   models.Envelope
	Redirect   bool
	Attempts   int
	EnqueuedAt time.Time

	// nextAttempt is when the head of the queue may be broadcast again.
	nextAttempt time.Time
	backoff     retry.Backoff
}

// DeliveryFailure reports a message the outbox stopped retrying.
type DeliveryFailure struct {
	Item QueuedItem
	Err  error
}

// DrainReport summarizes one Drain call.
type DrainReport struct {
	Delivered int
	Failed    int
	// Skipped counts recipients already being drained elsewhere.
	Skipped int
}

// Outbox delivers outbound direct messages. Messages to the same recipient
// are sent strictly in enqueue order; a failing recipient blocks only its
// own queue.
type Outbox struct {
	cfg      OutboxConfig
	builder  EnvelopeBuilder
	tx       Broadcaster
	contacts *store.ContactStore
	repo     outbox.Repository
	sink     notify.Sink
	log      logging.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	queues map[string][]*QueuedItem
	busy   map[string]bool
	closed bool

	kick   chan struct{}
	failed chan DeliveryFailure
}

func NewOutbox(
	cfg OutboxConfig,
	builder EnvelopeBuilder,
	tx Broadcaster,
	contacts *store.ContactStore,
	repo outbox.Repository,
	sink notify.Sink,
	log logging.Logger,
) *Outbox {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		cfg.RetryMaxDelay = max(defaultRetryMaxDelay, cfg.RetryBaseDelay)
	}
	return &Outbox{
		cfg:      cfg,
		builder:  builder,
		tx:       tx,
		contacts: contacts,
		repo:     repo,
		sink:     sink,
		log:      log,
		now:      time.Now,
		after:    time.After,
		queues:   make(map[string][]*QueuedItem),
		busy:     make(map[string]bool),
		kick:     make(chan struct{}, 1),
		failed:   make(chan DeliveryFailure, 64),
	}
}

// Failed delivers a DeliveryFailure for every message given up on. Every
// failure is also sent to the notification sink, so a full channel drops
// nothing silently.
func (o *Outbox) Failed() <-chan DeliveryFailure { return o.failed }

// Enqueue signs msg for recipient, records it in the recipient's thread as
// queued and schedules delivery. redirect is carried on the returned item
// for the caller and has no effect on delivery.
func (o *Outbox) Enqueue(ctx context.Context, msg models.OutgoingMessage, recipient models.Recipient, redirect bool) (QueuedItem, error) {
	if err := recipient.Validate(); err != nil {
		return QueuedItem{}, fmt.Errorf("invalid recipient: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return QueuedItem{}, fmt.Errorf("invalid message: %w", err)
	}
	env, err := o.builder.NewEnvelope(msg, recipient.Address)
	if err != nil {
		return QueuedItem{}, err
	}

	item := &QueuedItem{
		ID:         env.ID,
		Recipient:  recipient,
		Envelope:   env,
		Redirect:   redirect,
		EnqueuedAt: o.now(),
	}
	key := recipient.ContactKey()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return QueuedItem{}, ErrQueueClosed
	}
	if err := o.persist(ctx, key, item); err != nil {
		o.mu.Unlock()
		return QueuedItem{}, err
	}
	o.contacts.UpsertContact(key, recipient.Address, recipient.Username, "")
	if err := o.contacts.AddMessage(key, env.Message()); err != nil {
		o.log.Warn(ctx, "outbox: add message failed", "contact", key, "error", err)
	}
	o.queues[key] = append(o.queues[key], item)
	o.mu.Unlock()

	o.log.Debug(ctx, "outbox: queued", "id", item.ID, "contact", key)
	o.Kick()
	return *item, nil
}

// Restore reloads messages persisted by a previous run. Their threads are
// recreated in the contact store.
func (o *Outbox) Restore(ctx context.Context) (int, error) {
	if o.repo == nil {
		return 0, nil
	}
	recs, err := o.repo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore outbox: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, rec := range recs {
		var env models.Envelope
		if err := json.Unmarshal(rec.Envelope, &env); err != nil {
			o.log.Error(ctx, "outbox: dropping unreadable record", "id", rec.ID, "error", err)
			_ = o.repo.Delete(ctx, rec.ID)
			continue
		}
		item := &QueuedItem{
			ID:         rec.ID,
			Recipient:  models.Recipient{Key: rec.Recipient, Address: env.Recipient},
			Envelope:   env,
			Attempts:   rec.Attempts,
			EnqueuedAt: rec.EnqueuedAt,
		}
		o.contacts.UpsertContact(rec.Recipient, env.Recipient, "", "")
		if err := o.contacts.AddMessage(rec.Recipient, env.Message()); err != nil {
			o.log.Warn(ctx, "outbox: restore message failed", "id", rec.ID, "error", err)
		}
		o.queues[rec.Recipient] = append(o.queues[rec.Recipient], item)
		n++
	}
	return n, nil
}

// Kick asks Run to drain without waiting for the next interval.
func (o *Outbox) Kick() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued messages for a contact key.
func (o *Outbox) Pending(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queues[key])
}

// Len returns the number of queued messages across all recipients.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, q := range o.queues {
		n += len(q)
	}
	return n
}

// Close rejects further Enqueue calls. Queued messages stay persisted.
func (o *Outbox) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

// Run drains the queue every DrainInterval and whenever Kick is called,
// until ctx is done.
func (o *Outbox) Run(ctx context.Context) error {
	for {
		o.Drain(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-o.kick:
		case <-o.after(o.cfg.DrainInterval):
		}
	}
}

// Drain attempts delivery for every recipient with queued messages.
// Recipients are drained concurrently; within one recipient delivery stops
// at the first failure so order is kept.
func (o *Outbox) Drain(ctx context.Context) DrainReport {
	o.mu.Lock()
	var keys []string
	skipped := 0
	for key, q := range o.queues {
		if len(q) == 0 {
			delete(o.queues, key)
			continue
		}
		if o.busy[key] {
			skipped++
			continue
		}
		o.busy[key] = true
		keys = append(keys, key)
	}
	o.mu.Unlock()

	var (
		g      errgroup.Group
		mu     sync.Mutex
		report = DrainReport{Skipped: skipped}
	)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			delivered, failed := o.drainRecipient(ctx, key)
			mu.Lock()
			report.Delivered += delivered
			report.Failed += failed
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (o *Outbox) head(key string) *QueuedItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	if q := o.queues[key]; len(q) > 0 {
		return q[0]
	}
	return nil
}

func (o *Outbox) pop(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	q := o.queues[key]
	if len(q) == 0 {
		return
	}
	q[0] = nil
	o.queues[key] = q[1:]
}

func (o *Outbox) release(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.busy, key)
	if len(o.queues[key]) == 0 {
		delete(o.queues, key)
	}
}

func (o *Outbox) drainRecipient(ctx context.Context, key string) (delivered, failed int) {
	defer o.release(key)

	for ctx.Err() == nil {
		item := o.head(key)
		if item == nil {
			return delivered, failed
		}

		if o.cfg.MaxAge > 0 && o.now().Sub(item.EnqueuedAt) > o.cfg.MaxAge {
			o.giveUp(ctx, key, item, fmt.Errorf("%w: queued for more than %s", ErrDeliveryFailed, o.cfg.MaxAge))
			failed++
			continue
		}

		// Drains triggered by Kick do not spend attempts of a backing-off item.
		if o.now().Before(item.nextAttempt) {
			return delivered, failed
		}

		ref, err := o.tx.Broadcast(ctx, item.Envelope)
		if err != nil {
			item.Attempts++
			if item.Attempts >= o.cfg.MaxAttempts {
				o.giveUp(ctx, key, item, fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, item.Attempts, err))
				failed++
				continue
			}
			wait := o.scheduleRetry(item)
			o.log.Warn(ctx, "outbox: broadcast failed, will retry", "id", item.ID, "contact", key, "attempt", item.Attempts, "retry_in", wait, "error", err)
			if perr := o.persist(ctx, key, item); perr != nil {
				o.log.Error(ctx, "outbox: save attempts failed", "id", item.ID, "error", perr)
			}
			return delivered, failed
		}

		o.confirm(ctx, key, item, ref)
		o.pop(key)
		delivered++
	}
	return delivered, failed
}

// scheduleRetry pushes the item's next attempt out by its backoff and
// returns the wait.
func (o *Outbox) scheduleRetry(item *QueuedItem) time.Duration {
	if item.backoff == nil {
		item.backoff = retry.WithCappedDuration(o.cfg.RetryMaxDelay, retry.NewExponential(o.cfg.RetryBaseDelay))
	}
	wait, stop := item.backoff.Next()
	if stop {
		wait = o.cfg.RetryMaxDelay
	}
	item.nextAttempt = o.now().Add(wait)
	return wait
}

// confirm moves the delivered message from its provisional id to ref.
func (o *Outbox) confirm(ctx context.Context, key string, item *QueuedItem, ref string) {
	switch err := o.contacts.RenameMessage(key, item.ID, ref); {
	case err == nil:
		if err := o.contacts.SetStatus(key, ref, models.StatusBroadcast); err != nil {
			o.log.Warn(ctx, "outbox: set status failed", "id", ref, "error", err)
		}
	case errors.Is(err, store.ErrContactNotFound):
		// conversation deleted while the message was in flight
	default:
		o.log.Warn(ctx, "outbox: rename failed", "id", item.ID, "ref", ref, "error", err)
	}
	if o.repo != nil {
		if err := o.repo.Delete(ctx, item.ID); err != nil {
			o.log.Error(ctx, "outbox: delete record failed", "id", item.ID, "error", err)
		}
	}
	o.log.Info(ctx, "outbox: delivered", "id", item.ID, "ref", ref, "contact", key)
}

func (o *Outbox) giveUp(ctx context.Context, key string, item *QueuedItem, cause error) {
	o.pop(key)
	if err := o.contacts.SetStatus(key, item.ID, models.StatusFailed); err != nil && !errors.Is(err, store.ErrContactNotFound) {
		o.log.Warn(ctx, "outbox: mark failed", "id", item.ID, "error", err)
	}
	if o.repo != nil {
		if err := o.repo.Delete(ctx, item.ID); err != nil {
			o.log.Error(ctx, "outbox: delete record failed", "id", item.ID, "error", err)
		}
	}

	o.log.Error(ctx, "outbox: giving up on message", "id", item.ID, "contact", key, "error", cause)
	who := item.Recipient.Username
	if who == "" {
		who = item.Recipient.Address
	}
	if o.sink != nil {
		o.sink.Enqueue(notify.Error(fmt.Sprintf("Message to %s could not be delivered.", who)))
	}

	select {
	case o.failed <- DeliveryFailure{Item: *item, Err: cause}:
	default:
		o.log.Warn(ctx, "outbox: failure channel full", "id", item.ID)
	}
}

func (o *Outbox) persist(ctx context.Context, key string, item *QueuedItem) error {
	if o.repo == nil {
		return nil
	}
	raw, err := json.Marshal(item.Envelope)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	return o.repo.Save(ctx, outbox.Record{
		ID:         item.ID,
		Recipient:  key,
		Envelope:   raw,
		Attempts:   item.Attempts,
		EnqueuedAt: item.EnqueuedAt,
	})
}
