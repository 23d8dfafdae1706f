package switcher

import (
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/switchkit/pkg/audit"
	"github.com/dmitrymomot/switchkit/pkg/broadcast"
	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/queue"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
)

// Service prices subscription switches and commits them in two phases:
// Checkout records a plan on a new switch order, CompleteSwitches applies it
// once the order is paid.
type Service struct {
	repo      subscription.Repository
	catalog   subscription.Catalog
	settings  Settings
	hooks     Hooks
	lifecycle *OrderLifecycle

	carts     cart.Store
	notes     audit.Logger
	enqueuer  *queue.Enqueuer
	events    broadcast.Broadcaster[SwitchCompletedEvent]
	listeners []Listener
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithSettings replaces DefaultSettings.
func WithSettings(s Settings) Option {
	return func(svc *Service) { svc.settings = s }
}

// WithHooks installs extension points.
func WithHooks(h Hooks) Option {
	return func(svc *Service) { svc.hooks = h }
}

// WithCartStore deletes the cart after a successful checkout.
func WithCartStore(store cart.Store) Option {
	return func(svc *Service) { svc.carts = store }
}

// WithNotes records subscription and order notes.
func WithNotes(notes audit.Logger) Option {
	return func(svc *Service) { svc.notes = notes }
}

// WithEnqueuer runs order status side effects through the task queue.
// Without it they run inline in TransitionOrder.
func WithEnqueuer(e *queue.Enqueuer) Option {
	return func(svc *Service) { svc.enqueuer = e }
}

// WithBroadcaster publishes SwitchCompletedEvent after every commit.
func WithBroadcaster(b broadcast.Broadcaster[SwitchCompletedEvent]) Option {
	return func(svc *Service) { svc.events = b }
}

// WithListeners adds listeners that run synchronously after every commit.
func WithListeners(l ...Listener) Option {
	return func(svc *Service) { svc.listeners = append(svc.listeners, l...) }
}

// WithMetrics records switch metrics.
func WithMetrics(m *Metrics) Option {
	return func(svc *Service) { svc.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) {
		if now != nil {
			svc.now = now
		}
	}
}

// New creates a Service.
func New(repo subscription.Repository, catalog subscription.Catalog, opts ...Option) (*Service, error) {
	if repo == nil || catalog == nil {
		return nil, errors.New("switcher: repository and catalog are required")
	}
	svc := &Service{
		repo:     repo,
		catalog:  catalog,
		settings: DefaultSettings(),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if err := svc.settings.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidSettings, err)
	}
	svc.lifecycle = NewOrderLifecycle(svc.settings.PaymentCompleteStatuses, svc.now)
	svc.logger = svc.logger.With(logger.Component("switcher"))
	return svc, nil
}

// MustNew is like New but panics on error.
func MustNew(repo subscription.Repository, catalog subscription.Catalog, opts ...Option) *Service {
	svc, err := New(repo, catalog, opts...)
	if err != nil {
		panic(err)
	}
	return svc
}

// Lifecycle returns the order state machine used by TransitionOrder.
func (s *Service) Lifecycle() *OrderLifecycle { return s.lifecycle }

// Settings returns the active settings.
func (s *Service) Settings() Settings { return s.settings }
