package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Dispatcher errors.
var (
	ErrWaiterPending  = errors.New("an acknowledgment is already awaited")
	ErrDeviceRejected = errors.New("device reported provisioning failure")
	ErrClosed         = errors.New("dispatcher is closed")
)

// Handlers are optional callbacks invoked after the dispatcher state has been
// updated. They run on the goroutine delivering the frame and must not block.
type Handlers struct {
	OnNetwork      func(WifiNetwork)
	OnScanComplete func([]WifiNetwork)
	OnDone         func()
	OnFail         func()
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithHandlers sets the event callbacks.
func WithHandlers(h Handlers) Option {
	return func(d *Dispatcher) {
		d.handlers = h
	}
}

// Dispatcher classifies incoming notifications. It holds at most one pending
// waiter, which enforces one unacknowledged write at a time, and accumulates
// the Wi-Fi networks reported by the device in the order they arrive.
type Dispatcher struct {
	mu sync.Mutex

	waiter *Waiter

	networks     []WifiNetwork
	scanComplete bool
	scanDone     chan struct{}

	terminal Status
	final    chan struct{}

	closed   bool
	closeErr error
	closedCh chan struct{}

	handlers Handlers
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		scanDone: make(chan struct{}),
		final:    make(chan struct{}),
		closedCh: make(chan struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleFrame decodes a raw notification and acts on it. Decode errors are
// returned to the caller and leave the dispatcher unchanged.
func (d *Dispatcher) HandleFrame(frame []byte) (Message, error) {
	msg, err := Decode(frame)
	if err != nil {
		d.logger.Warn("dropping undecodable notification", "error", err, "size", len(frame))
		return nil, err
	}
	d.HandleMessage(msg)
	return msg, nil
}

// HandleMessage acts on a decoded notification.
func (d *Dispatcher) HandleMessage(msg Message) {
	switch m := msg.(type) {
	case WifiScanEvent:
		d.handleScan(m)
	case ProvisionEvent:
		switch m.Status {
		case StatusProgress:
			d.handleProgress()
		case StatusDone:
			d.handleTerminal(StatusDone, nil)
		case StatusFail:
			d.handleTerminal(StatusFail, ErrDeviceRejected)
		}
	default:
		d.logger.Debug("ignoring notification", "type", TypeOf(msg))
	}
}

func (d *Dispatcher) handleScan(ev WifiScanEvent) {
	d.mu.Lock()
	if d.scanComplete {
		d.mu.Unlock()
		d.logger.Debug("ignoring scan result after scan completion", "ssid", ev.SSID)
		return
	}

	var added *WifiNetwork
	if ev.SSID != "" {
		n := WifiNetwork{SSID: ev.SSID, RSSI: ev.RSSI}
		d.networks = append(d.networks, n)
		added = &n
	}

	var complete []WifiNetwork
	if ev.Count == 0 {
		d.scanComplete = true
		close(d.scanDone)
		complete = d.networksLocked()
	}
	h := d.handlers
	d.mu.Unlock()

	if added != nil && h.OnNetwork != nil {
		h.OnNetwork(*added)
	}
	if complete != nil && h.OnScanComplete != nil {
		h.OnScanComplete(complete)
	}
}

func (d *Dispatcher) handleProgress() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.waiter == nil {
		d.logger.Debug("dropping unsolicited progress notification")
		return
	}
	d.releaseLocked(nil)
}

func (d *Dispatcher) handleTerminal(status Status, waiterErr error) {
	d.mu.Lock()
	if prev := d.terminal; prev != "" {
		d.mu.Unlock()
		d.logger.Debug("ignoring terminal notification after terminal state",
			"status", status, "terminal", prev)
		return
	}
	d.terminal = status
	close(d.final)
	if d.waiter != nil {
		d.releaseLocked(waiterErr)
	}
	h := d.handlers
	d.mu.Unlock()

	switch status {
	case StatusDone:
		if h.OnDone != nil {
			h.OnDone()
		}
	case StatusFail:
		if h.OnFail != nil {
			h.OnFail()
		}
	}
}

// releaseLocked resolves and clears the pending waiter. Must hold d.mu.
func (d *Dispatcher) releaseLocked(err error) {
	d.waiter.ch <- err
	d.waiter = nil
}

// Expect arms the single pending waiter. It must be called before the write
// it acknowledges is issued, so an early acknowledgment is not lost.
func (d *Dispatcher) Expect() (*Waiter, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, d.closeErr
	}
	if d.terminal == StatusFail {
		return nil, ErrDeviceRejected
	}
	if d.waiter != nil {
		return nil, ErrWaiterPending
	}

	w := &Waiter{d: d, ch: make(chan error, 1)}
	if d.terminal == StatusDone {
		// Nothing more will be acknowledged after done.
		w.ch <- nil
		return w, nil
	}
	d.waiter = w
	return w, nil
}

// Pending reports whether a waiter is armed.
func (d *Dispatcher) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waiter != nil
}

// Networks returns a copy of the networks reported so far.
func (d *Dispatcher) Networks() []WifiNetwork {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.networksLocked()
}

func (d *Dispatcher) networksLocked() []WifiNetwork {
	out := make([]WifiNetwork, len(d.networks))
	copy(out, d.networks)
	return out
}

// ScanComplete reports whether the final scan result has arrived.
func (d *Dispatcher) ScanComplete() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanComplete
}

// Terminal returns StatusDone or StatusFail once the device has reported a
// terminal state, and "" before that.
func (d *Dispatcher) Terminal() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.terminal
}

// WaitScan blocks until the scan is complete and returns the network list.
func (d *Dispatcher) WaitScan(ctx context.Context) ([]WifiNetwork, error) {
	select {
	case <-d.scanDone:
		return d.Networks(), nil
	case <-d.final:
		if d.Terminal() == StatusFail {
			return nil, ErrDeviceRejected
		}
		return d.Networks(), nil
	case <-d.closedCh:
		return nil, d.closeError()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WaitDone blocks until the device reports a terminal state. It returns nil
// for done and ErrDeviceRejected for fail.
func (d *Dispatcher) WaitDone(ctx context.Context) error {
	select {
	case <-d.final:
		if d.Terminal() == StatusFail {
			return ErrDeviceRejected
		}
		return nil
	case <-d.closedCh:
		return d.closeError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close releases the pending waiter with err (ErrClosed if nil) and makes
// every later Expect fail. Close is idempotent.
func (d *Dispatcher) Close(err error) {
	if err == nil {
		err = ErrClosed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.closeErr = err
	close(d.closedCh)
	if d.waiter != nil {
		d.releaseLocked(err)
	}
}

func (d *Dispatcher) closeError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeErr
}

// Waiter is a one-shot acknowledgment slot.
type Waiter struct {
	d  *Dispatcher
	ch chan error
}

// Wait blocks until the waiter is released or ctx is done. A progress
// notification releases it with nil, a fail notification with
// ErrDeviceRejected and Close with the close error.
func (w *Waiter) Wait(ctx context.Context) error {
	select {
	case err := <-w.ch:
		return err
	case <-ctx.Done():
		w.Cancel()
		select {
		case err := <-w.ch:
			return err
		default:
		}
		return ctx.Err()
	}
}

// Cancel disarms the waiter if it is still pending.
func (w *Waiter) Cancel() {
	w.d.mu.Lock()
	defer w.d.mu.Unlock()
	if w.d.waiter == w {
		w.d.waiter = nil
	}
}
