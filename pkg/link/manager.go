package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/log"
)

// scanBuffer bounds how many matching advertisements are queued for a slow
// consumer before further ones are dropped.
const scanBuffer = 16

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithTracer sets the protocol tracer for frames and link state changes.
func WithTracer(t *log.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

// Conn is an open connection to a provisioning device.
type Conn struct {
	peripheral Peripheral
	device     Device

	mu         sync.Mutex
	chars      map[Characteristic]bool
	subscribed bool

	closed atomic.Bool
}

// Peripheral returns the device the connection was opened to.
func (c *Conn) Peripheral() Peripheral {
	return c.peripheral
}

// Closed reports whether Disconnect has been called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

func (c *Conn) has(ch Characteristic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chars[ch]
}

// Manager owns the radio and at most one device connection.
type Manager struct {
	adapter Adapter
	logger  *slog.Logger
	tracer  *log.Tracer

	enableOnce sync.Once
	enableErr  error

	mu         sync.Mutex
	conn       *Conn
	scanCancel context.CancelFunc

	scanning atomic.Bool
	complete atomic.Bool
}

// NewManager creates a Manager over adapter.
func NewManager(adapter Adapter, opts ...Option) *Manager {
	m := &Manager{
		adapter: adapter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetTracer replaces the protocol tracer. Sessions call it once they know
// their identity.
func (m *Manager) SetTracer(t *log.Tracer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracer = t
}

func (m *Manager) trace() *log.Tracer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracer
}

func (m *Manager) enable() error {
	m.enableOnce.Do(func() {
		if err := m.adapter.Enable(); err != nil {
			m.enableErr = fmt.Errorf("%w: enable adapter: %v", ErrLink, err)
		}
	})
	return m.enableErr
}

// Scan starts scanning and streams peripherals accepted by match (all of
// them if match is nil). The channel closes when StopScan is called, ctx is
// done or the radio ends the scan.
func (m *Manager) Scan(ctx context.Context, match func(Peripheral) bool) (<-chan Peripheral, error) {
	if err := m.enable(); err != nil {
		return nil, err
	}
	if m.scanning.Swap(true) {
		return nil, ErrScanActive
	}

	scanCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.scanCancel = cancel
	m.mu.Unlock()

	out := make(chan Peripheral, scanBuffer)
	go func() {
		defer close(out)
		defer m.scanning.Store(false)
		defer cancel()

		m.trace().State(log.StateEntityLink, "", "scanning", "")
		err := m.adapter.Scan(scanCtx, func(p Peripheral) {
			if match != nil && !match(p) {
				return
			}
			select {
			case out <- p:
			case <-scanCtx.Done():
			default:
				m.logger.Debug("scan consumer slow, dropping advertisement", "name", p.Name)
			}
		})
		if err != nil && scanCtx.Err() == nil {
			m.logger.Warn("scan ended with error", "error", err)
			m.trace().Error(log.LayerLink, err, "scan")
		}
		m.trace().State(log.StateEntityLink, "scanning", "idle", "")
	}()

	return out, nil
}

// StopScan ends a running scan. It is a no-op when no scan is running.
func (m *Manager) StopScan() error {
	m.mu.Lock()
	cancel := m.scanCancel
	m.scanCancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if !m.scanning.Load() {
		return nil
	}
	if err := m.adapter.StopScan(); err != nil {
		return fmt.Errorf("%w: stop scan: %v", ErrLink, err)
	}
	return nil
}

// Connect opens a connection to p. Only one connection may be open at a
// time.
func (m *Manager) Connect(ctx context.Context, p Peripheral) (*Conn, error) {
	if err := m.enable(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	tracer := m.tracer
	m.mu.Unlock()

	dev, err := m.adapter.Connect(ctx, p)
	if err != nil {
		tracer.Error(log.LayerLink, err, "connect "+p.Address)
		return nil, fmt.Errorf("%w: connect %s: %v", ErrLink, p.Address, err)
	}

	conn := &Conn{peripheral: p, device: dev}

	m.mu.Lock()
	if m.conn != nil {
		m.mu.Unlock()
		_ = dev.Disconnect()
		return nil, ErrAlreadyConnected
	}
	m.conn = conn
	m.mu.Unlock()

	m.complete.Store(false)
	tracer.State(log.StateEntityLink, "idle", "connected", p.Address)
	m.logger.Debug("connected", "address", p.Address, "name", p.Name)
	return conn, nil
}

// DiscoverCapabilities checks that the provisioning service exposes every
// characteristic of the protocol.
func (m *Manager) DiscoverCapabilities(ctx context.Context, c *Conn) error {
	if err := m.check(c); err != nil {
		return err
	}

	found, err := c.device.Characteristics(ctx, ServiceUUID)
	if err != nil {
		if errors.Is(err, ErrLink) {
			return err
		}
		return fmt.Errorf("%w: discover services: %v", ErrLink, err)
	}

	chars := make(map[Characteristic]bool, len(found))
	for _, ch := range found {
		chars[ch] = true
	}
	for _, want := range Characteristics {
		if !chars[want] {
			return fmt.Errorf("%w: %s (0x%04x)", ErrMissingChar, want, uint16(want))
		}
	}

	c.mu.Lock()
	c.chars = chars
	c.mu.Unlock()
	return nil
}

// Subscribe delivers every notification of the status characteristic to
// onFrame. Link failures are passed to onError as ErrLink, except after
// MarkComplete: a provisioned device resets and drops the link on purpose.
func (m *Manager) Subscribe(c *Conn, onFrame func([]byte), onError func(error)) error {
	if err := m.check(c); err != nil {
		return err
	}
	if !c.has(CharNotify) {
		return fmt.Errorf("%w: %s not discovered", ErrMissingChar, CharNotify)
	}

	tracer := m.trace()
	notify := func(frame []byte) {
		tracer.Frame(log.DirectionIn, uint16(CharNotify), frame)
		onFrame(frame)
	}
	fail := func(err error) {
		if m.complete.Load() || c.closed.Load() {
			m.logger.Debug("ignoring link error after completion", "error", err)
			return
		}
		tracer.Error(log.LayerLink, err, "notification")
		if onError != nil {
			onError(fmt.Errorf("%w: %v", ErrLink, err))
		}
	}

	if err := c.device.Subscribe(CharNotify, notify, fail); err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrLink, err)
	}

	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()
	return nil
}

// Write writes a sealed frame to ch with response. The base64 transport
// encoding is stripped first: the device receives the raw IV and ciphertext.
func (m *Manager) Write(ctx context.Context, c *Conn, ch Characteristic, frame []byte) error {
	if err := m.check(c); err != nil {
		return err
	}
	if !ch.Writable() {
		return fmt.Errorf("%w: %s is not writable", ErrLink, ch)
	}
	if !c.has(ch) {
		return fmt.Errorf("%w: %s not discovered", ErrMissingChar, ch)
	}

	raw, err := envelope.Unframe(frame)
	if err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrLink, ch, err)
	}

	tracer := m.trace()
	tracer.Frame(log.DirectionOut, uint16(ch), raw)
	if err := c.device.Write(ctx, ch, raw); err != nil {
		tracer.Error(log.LayerLink, err, "write "+ch.String())
		return fmt.Errorf("%w: write %s: %v", ErrLink, ch, err)
	}
	return nil
}

// Disconnect tears down the connection. It is idempotent and best effort:
// errors are logged and the connection is released regardless.
func (m *Manager) Disconnect(c *Conn) error {
	if c == nil || c.closed.Swap(true) {
		return nil
	}

	m.mu.Lock()
	if m.conn == c {
		m.conn = nil
	}
	m.mu.Unlock()

	c.mu.Lock()
	subscribed := c.subscribed
	c.subscribed = false
	c.mu.Unlock()

	var errs []error
	if subscribed {
		if err := c.device.Unsubscribe(CharNotify); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe: %w", err))
		}
	}
	if err := c.device.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}

	m.trace().State(log.StateEntityLink, "connected", "disconnected", c.peripheral.Address)
	if err := errors.Join(errs...); err != nil {
		m.logger.Debug("disconnect incomplete", "address", c.peripheral.Address, "error", err)
		return fmt.Errorf("%w: %v", ErrLink, err)
	}
	return nil
}

// MarkComplete records terminal success. Link errors reported after it are
// swallowed.
func (m *Manager) MarkComplete() {
	m.complete.Store(true)
}

// Completed reports whether MarkComplete has been called for the current
// connection.
func (m *Manager) Completed() bool {
	return m.complete.Load()
}

func (m *Manager) check(c *Conn) error {
	if c == nil || c.closed.Load() {
		return ErrNotConnected
	}
	return nil
}
