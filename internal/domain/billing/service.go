package billing

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ErrQueueFull is returned when the background worker cannot keep up.
var ErrQueueFull = errors.New("billing queue is full")

// Options configures a Service.
type Options struct {
	// QueueSize bounds the number of records waiting for persistence.
	QueueSize int
	// Timeout bounds a single insert or notification.
	Timeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 128
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service accepts billing submissions and persists them off the request path.
// A store or notifier failure is logged and never reaches the buyer.
type Service struct {
	repo     Repository
	notifier Notifier
	opts     Options
	queue    chan Record
}

// NewService creates a Service. Either dependency may be nil, in which case
// that step is skipped.
func NewService(repo Repository, notifier Notifier, opts Options) *Service {
	opts.setDefaults()
	return &Service{
		repo:     repo,
		notifier: notifier,
		opts:     opts,
		queue:    make(chan Record, opts.QueueSize),
	}
}

// Submit validates a submission and schedules it for persistence. It returns
// as soon as the record is queued.
func (s *Service) Submit(ctx context.Context, orderID, mode string, d Details) (Record, error) {
	orderID = strings.TrimSpace(orderID)
	mode = strings.TrimSpace(mode)
	if orderID == "" || mode == "" {
		return Record{}, errors.Wrap(ErrMissingFields, "orderID and paymentProvider are required")
	}
	if missing := d.Missing(); len(missing) > 0 {
		return Record{}, &MissingFieldsError{Fields: missing}
	}

	r := Record{
		OrderID:   orderID,
		Details:   d,
		Status:    StatusInitiated,
		Mode:      mode,
		CreatedAt: s.opts.Now().UTC(),
	}

	select {
	case s.queue <- r:
		zctx.From(ctx).Debug("Billing details queued", zap.String("order_id", orderID))
		return r, nil
	default:
		return Record{}, ErrQueueFull
	}
}

// Run processes queued records until ctx is cancelled, then drains what is
// left before returning.
func (s *Service) Run(ctx context.Context) error {
	lg := zctx.From(ctx)
	for {
		select {
		case r := <-s.queue:
			s.process(ctx, r)
		case <-ctx.Done():
			// Finish pending work on a context that outlives shutdown.
			drainCtx := context.WithoutCancel(ctx)
			for {
				select {
				case r := <-s.queue:
					s.process(drainCtx, r)
				default:
					lg.Debug("Billing worker stopped")
					return nil
				}
			}
		}
	}
}

func (s *Service) process(ctx context.Context, r Record) {
	lg := zctx.From(ctx).With(zap.String("order_id", r.OrderID))

	if s.repo != nil {
		insCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		err := s.repo.Insert(insCtx, r)
		cancel()
		if err != nil {
			lg.Error("Save billing details", zap.Error(err))
		} else {
			lg.Info("Billing details saved", zap.String("mode", r.Mode))
		}
	}

	if s.notifier != nil {
		notifyCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		err := s.notifier.Notify(notifyCtx, r)
		cancel()
		if err != nil {
			lg.Error("Send billing notification", zap.Error(err))
		}
	}
}
