package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/log"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithProtocolLogger sets the protocol trace sink.
func WithProtocolLogger(l log.Logger) Option {
	return func(o *Orchestrator) {
		o.protocolLogger = l
	}
}

// WithObserver registers an event observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, obs)
	}
}

// Orchestrator runs provisioning sessions, one at a time.
type Orchestrator struct {
	cfg  Config
	link Link
	reg  registry.Registry
	src  secrets.Source

	logger         *slog.Logger
	protocolLogger log.Logger

	mu        sync.Mutex
	active    *Session
	observers []Observer
}

// New creates an Orchestrator.
func New(cfg Config, l Link, reg registry.Registry, src secrets.Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		link:   l,
		reg:    reg,
		src:    src,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OnEvent registers an observer.
func (o *Orchestrator) OnEvent(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, obs)
}

// Active returns the running session, if any.
func (o *Orchestrator) Active() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

func (o *Orchestrator) emit(e Event) {
	o.mu.Lock()
	observers := make([]Observer, len(o.observers))
	copy(observers, o.observers)
	o.mu.Unlock()

	for _, obs := range observers {
		obs(e)
	}
}

func (o *Orchestrator) release(s *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == s {
		o.active = nil
	}
}

// Start validates rawID, finds the device, connects to it and completes the
// proof of possession exchange. An invalid identity returns
// identity.ErrFormat without touching the radio.
func (o *Orchestrator) Start(ctx context.Context, rawID string) (*Session, error) {
	s, err := o.start(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// start returns the session even when it failed after being created.
func (o *Orchestrator) start(ctx context.Context, rawID string) (*Session, error) {
	id, err := o.cfg.Identity.Parse(rawID)
	if err != nil {
		return nil, err
	}

	s, err := o.newSession(id)
	if err != nil {
		return nil, err
	}

	if err := s.discover(ctx); err != nil {
		return s, err
	}
	if err := s.connect(ctx); err != nil {
		return s, err
	}
	if err := s.exchangePoP(ctx); err != nil {
		return s, err
	}
	return s, nil
}

func (o *Orchestrator) newSession(id identity.ID) (*Session, error) {
	sid := uuid.New().String()
	s := &Session{
		o:       o,
		id:      sid,
		device:  registry.Device{ID: id},
		tracer:  log.NewTracer(o.protocolLogger, sid).WithDevice(id.String()),
		logger:  o.logger.With("session", sid, "device", id.String()),
		started: time.Now(),
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrSessionActive
	}
	o.active = s
	o.mu.Unlock()

	o.link.SetTracer(s.tracer)
	return s, nil
}

// Provision runs a whole session: it starts it, hands the reported networks
// to choose, and transfers the credentials for the chosen network. The
// result is returned for failures too, together with the terminal error.
func (o *Orchestrator) Provision(ctx context.Context, rawID string, choose Chooser) (*Result, error) {
	s, err := o.start(ctx, rawID)
	if s == nil {
		return &Result{Err: err, Cause: CauseOf(err)}, err
	}
	defer s.Close()
	if err != nil {
		return s.Result(), err
	}

	networks, err := s.Networks(ctx)
	if err != nil {
		return s.Result(), err
	}

	ssid, password, err := choose(ctx, networks)
	if err != nil {
		err = s.fail(fmt.Errorf("%w: %v", ErrSessionAbandoned, err))
		return s.Result(), err
	}
	if err := s.Choose(ssid, password); err != nil {
		return s.Result(), s.fail(err)
	}

	if err := s.Transfer(ctx); err != nil {
		return s.Result(), err
	}
	return s.Result(), nil
}

// waitError classifies an error from a bounded wait. A deadline means the
// device went quiet; cancellation of parent means the user gave up.
func waitError(parent context.Context, err error, what string) error {
	if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(parent.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSessionAbandoned, parent.Err())
	}
	return fmt.Errorf("%w: %s", ErrTimeout, what)
}

// scanMatcher accepts peripherals advertising id.
func scanMatcher(id identity.ID) func(link.Peripheral) bool {
	return func(p link.Peripheral) bool {
		return id.Matches(p.Name)
	}
}

// networkEvent adapts a scan result for observers.
func networkEvent(s *Session, n notify.WifiNetwork) Event {
	return Event{Type: EventNetworkFound, SessionID: s.id, DeviceID: s.device.ID, Network: n}
}
