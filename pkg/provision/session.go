package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/thingprov/thingprov-go/pkg/chunk"
	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/log"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

// MessageTypePoP tags the proof of possession in protocol traces.
const MessageTypePoP = "pop"

// Session is one provisioning attempt.
type Session struct {
	o       *Orchestrator
	id      string
	device  registry.Device
	logger  *slog.Logger
	started time.Time

	mu         sync.Mutex
	tracer     *log.Tracer
	peripheral link.Peripheral
	conn       *link.Conn
	disp       *notify.Dispatcher
	phase      Phase
	err        error
	ssid       string
	password   string
	records    int
	ended      time.Time

	teardownOnce sync.Once
}

// ID returns the session identifier stamped on protocol traces.
func (s *Session) ID() string {
	return s.id
}

// DeviceID returns the identity being provisioned.
func (s *Session) DeviceID() identity.ID {
	return s.device.ID
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) trace() *log.Tracer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracer
}

func (s *Session) target() link.Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peripheral
}

// Err returns the terminal error of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Result summarizes the session so far.
func (s *Session) Result() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := s.ended
	if end.IsZero() {
		end = time.Now()
	}
	return &Result{
		SessionID: s.id,
		DeviceID:  s.device.ID,
		Address:   s.peripheral.Address,
		Network:   s.ssid,
		Phase:     s.phase,
		Records:   s.records,
		Duration:  end.Sub(s.started),
		Err:       s.err,
		Cause:     CauseOf(s.err),
	}
}

// setPhase moves the session to p unless it already ended.
func (s *Session) setPhase(p Phase, reason string) bool {
	s.mu.Lock()
	old := s.phase
	if old.Terminal() || old == p {
		s.mu.Unlock()
		return false
	}
	s.phase = p
	if p.Terminal() {
		s.ended = time.Now()
	}
	s.mu.Unlock()

	s.trace().State(log.StateEntitySession, old.String(), p.String(), reason)
	s.logger.Debug("phase changed", "from", old, "to", p)
	s.o.emit(Event{Type: EventPhaseChanged, SessionID: s.id, DeviceID: s.device.ID, Phase: p})
	return true
}

// advance moves the session from one phase to the next. It is a no-op if
// the session is elsewhere.
func (s *Session) advance(from, to Phase) {
	s.mu.Lock()
	ok := s.phase == from
	s.mu.Unlock()
	if ok {
		s.setPhase(to, "")
	}
}

// fail ends the session with err and tears it down. It returns the
// session's terminal error, which is the first one recorded.
func (s *Session) fail(err error) error {
	s.mu.Lock()
	if s.phase.Terminal() {
		first := s.err
		s.mu.Unlock()
		if first == nil {
			return err
		}
		return first
	}
	old := s.phase
	s.phase = PhaseFailed
	s.err = err
	s.ended = time.Now()
	s.mu.Unlock()

	s.trace().Error(log.LayerSession, err, old.String())
	s.trace().State(log.StateEntitySession, old.String(), PhaseFailed.String(), CauseOf(err).String())
	s.logger.Warn("provisioning failed", "phase", old, "cause", CauseOf(err), "error", err)
	s.o.emit(Event{Type: EventPhaseChanged, SessionID: s.id, DeviceID: s.device.ID, Phase: PhaseFailed})
	s.o.emit(Event{Type: EventFailed, SessionID: s.id, DeviceID: s.device.ID, Phase: PhaseFailed, Error: err})

	s.teardown()
	return err
}

// teardown releases the link and the orchestrator slot.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.mu.Lock()
		conn, disp := s.conn, s.disp
		s.mu.Unlock()

		if disp != nil {
			disp.Close(ErrSessionClosed)
		}
		_ = s.o.link.StopScan()
		if conn != nil {
			if err := s.o.link.Disconnect(conn); err != nil {
				s.logger.Debug("disconnect failed", "error", err)
			}
		}
		s.o.release(s)
	})
}

// discover scans for the device and looks up its secrets.
func (s *Session) discover(ctx context.Context) error {
	s.setPhase(PhaseScanning, "")

	scanCtx, cancel := context.WithTimeout(ctx, s.o.cfg.ScanTimeout)
	defer cancel()

	found, err := s.o.link.Scan(scanCtx, scanMatcher(s.device.ID))
	if err != nil {
		return s.fail(err)
	}

	p, ok := <-found
	if !ok {
		if errors.Is(ctx.Err(), context.Canceled) {
			return s.fail(fmt.Errorf("%w: %v", ErrSessionAbandoned, ctx.Err()))
		}
		return s.fail(fmt.Errorf("%w: %s not advertising after %s", ErrDiscoveryTimeout, s.device.ID, s.o.cfg.ScanTimeout))
	}
	s.mu.Lock()
	s.peripheral = p
	s.tracer = s.tracer.WithPeer(p.Address)
	tracer := s.tracer
	s.mu.Unlock()
	s.o.link.SetTracer(tracer)
	s.logger.Info("device found", "address", p.Address, "rssi", p.RSSI)

	dev, err := s.o.reg.LookupDevice(ctx, s.device.ID)
	if err == nil {
		err = dev.Validate()
	}
	if err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrRegistry, err))
	}
	s.device = dev

	if err := s.o.link.StopScan(); err != nil {
		s.logger.Debug("stop scan failed", "error", err)
	}
	return nil
}

// connect opens the link, checks the GATT layout and subscribes to
// notifications.
func (s *Session) connect(ctx context.Context) error {
	connCtx, cancel := context.WithTimeout(ctx, s.o.cfg.ConnectTimeout)
	defer cancel()

	conn, err := s.o.link.Connect(connCtx, s.target())
	if err != nil {
		return s.fail(waitError(ctx, err, "connect"))
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.o.link.DiscoverCapabilities(connCtx, conn); err != nil {
		return s.fail(waitError(ctx, err, "service discovery"))
	}

	disp := notify.NewDispatcher(
		notify.WithLogger(s.logger),
		notify.WithHandlers(notify.Handlers{
			OnNetwork: func(n notify.WifiNetwork) {
				s.advance(PhasePopExchange, PhaseWifiCollecting)
				s.o.emit(networkEvent(s, n))
			},
			OnScanComplete: func(networks []notify.WifiNetwork) {
				s.logger.Debug("scan complete", "networks", len(networks))
				s.o.emit(Event{Type: EventScanComplete, SessionID: s.id, DeviceID: s.device.ID, Networks: networks})
			},
			OnDone: func() {
				// The device resets after done; its link loss is expected.
				s.o.link.MarkComplete()
			},
			OnFail: func() {
				s.logger.Warn("device reported failure")
			},
		}),
	)
	s.mu.Lock()
	s.disp = disp
	s.mu.Unlock()

	onFrame := func(frame []byte) {
		msg, err := disp.HandleFrame(frame)
		if err != nil {
			s.trace().Error(log.LayerMessage, err, "notification")
			return
		}
		s.trace().Message(log.DirectionIn, inboundEvent(msg))
	}
	onError := func(err error) {
		s.logger.Warn("link lost", "error", err)
		disp.Close(err)
	}
	if err := s.o.link.Subscribe(conn, onFrame, onError); err != nil {
		return s.fail(err)
	}
	return nil
}

// exchangePoP proves possession of the device secret.
func (s *Session) exchangePoP(ctx context.Context) error {
	s.setPhase(PhasePopExchange, "")
	if err := s.send(ctx, outbound{
		char:      link.CharPoP,
		plaintext: []byte(s.device.PoP),
		event:     log.MessageEvent{Type: MessageTypePoP},
	}); err != nil {
		return s.fail(err)
	}
	return nil
}

// Networks waits for the device to finish its Wi-Fi scan and returns the
// networks in the order they were reported. Duplicates are kept.
func (s *Session) Networks(ctx context.Context) ([]notify.WifiNetwork, error) {
	switch p := s.Phase(); p {
	case PhasePopExchange, PhaseWifiCollecting, PhaseNetworkChosen:
	case PhaseFailed:
		return nil, s.Err()
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidPhase, p)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.o.cfg.NetworkTimeout)
	defer cancel()

	networks, err := s.disp.WaitScan(waitCtx)
	if err != nil {
		return nil, s.fail(waitError(ctx, err, "network scan"))
	}
	s.advance(PhasePopExchange, PhaseWifiCollecting)
	return networks, nil
}

// Choose selects the network the device should join. The scan must be
// complete and ssid must be one of the reported networks.
func (s *Session) Choose(ssid, password string) error {
	if p := s.Phase(); p != PhaseWifiCollecting && p != PhaseNetworkChosen {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, p)
	}
	if !s.disp.ScanComplete() {
		return ErrScanIncomplete
	}
	if !notify.Contains(s.disp.Networks(), ssid) {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, ssid)
	}

	s.mu.Lock()
	s.ssid = ssid
	s.password = password
	s.mu.Unlock()

	s.setPhase(PhaseNetworkChosen, "")
	return nil
}

// Abandon ends the session on user request.
func (s *Session) Abandon() {
	_ = s.fail(ErrSessionAbandoned)
}

// Close tears the session down. A session that has not finished is failed
// with ErrSessionClosed. Close is idempotent.
func (s *Session) Close() {
	if !s.Phase().Terminal() {
		_ = s.fail(ErrSessionClosed)
		return
	}
	s.teardown()
}

// outbound is one enveloped write.
type outbound struct {
	char      link.Characteristic
	plaintext []byte
	event     log.MessageEvent
}

// Transfer sends the Wi-Fi credentials and the three PEM documents, waits
// for the device to join the network and records the device as
// provisioned.
func (s *Session) Transfer(ctx context.Context) error {
	if p := s.Phase(); p != PhaseNetworkChosen {
		return fmt.Errorf("%w: %s", ErrInvalidPhase, p)
	}
	s.setPhase(PhaseTransferring, "")

	plan, err := s.plan(ctx)
	if err != nil {
		return s.fail(err)
	}

	for _, out := range plan {
		if err := s.send(ctx, out); err != nil {
			return s.fail(err)
		}
	}

	doneCtx, cancel := context.WithTimeout(ctx, s.o.cfg.DoneTimeout)
	defer cancel()
	if err := s.disp.WaitDone(doneCtx); err != nil {
		return s.fail(waitError(ctx, err, "network join"))
	}

	if err := s.o.reg.MarkProvisioned(ctx, s.device.ID); err != nil {
		return s.fail(fmt.Errorf("%w: %w", ErrRegistry, err))
	}

	s.setPhase(PhaseDone, "")
	s.logger.Info("device provisioned", "network", s.ssid, "records", s.records)
	s.o.emit(Event{Type: EventCompleted, SessionID: s.id, DeviceID: s.device.ID, Phase: PhaseDone})
	s.teardown()
	return nil
}

// plan fetches the documents and builds every write of the transfer. No
// write is issued if any record would not fit the device buffer.
func (s *Session) plan(ctx context.Context) ([]outbound, error) {
	s.mu.Lock()
	ssid, password := s.ssid, s.password
	s.mu.Unlock()

	creds, err := chunk.NewWifiCredentials(ssid, password).Marshal()
	if err != nil {
		return nil, err
	}
	plan := []outbound{{
		char:      link.CharWifi,
		plaintext: creds,
		event:     log.MessageEvent{Type: string(chunk.TypeWifiCredentials), SSID: ssid},
	}}

	docs := s.o.cfg.Documents
	for _, d := range []struct {
		name string
		char link.Characteristic
		tag  chunk.Type
	}{
		{docs.RootCA, link.CharRootCA, chunk.TypeRootCA},
		{docs.ThingCert, link.CharThingCert, chunk.TypeThingCert},
		{docs.ThingKey, link.CharThingKey, chunk.TypeThingKey},
	} {
		data, err := s.o.src.FetchPEM(ctx, d.name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSecrets, d.name, err)
		}
		kind := secrets.KindCertificate
		if d.tag == chunk.TypeThingKey {
			kind = secrets.KindPrivateKey
		}
		if err := secrets.ValidatePEM(data, kind); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSecrets, d.name, err)
		}

		enc := chunk.NewEncoder(chunk.Document(data), d.tag)
		for rec, ok := enc.Next(); ok; rec, ok = enc.Next() {
			pt, err := rec.Marshal()
			if err != nil {
				return nil, err
			}
			ready := rec.Ready
			plan = append(plan, outbound{
				char:      d.char,
				plaintext: pt,
				event:     log.MessageEvent{Type: string(rec.Type), Ready: &ready},
			})
		}
	}

	for _, out := range plan {
		if err := chunk.CheckFrame(envelope.FrameLen(len(out.plaintext))); err != nil {
			return nil, fmt.Errorf("%s: %w", out.event.Type, err)
		}
	}
	return plan, nil
}

// send envelopes one record, writes it and waits for its acknowledgment.
// The waiter is armed before the write so an early acknowledgment is not
// lost.
func (s *Session) send(ctx context.Context, out outbound) error {
	frame, err := envelope.Seal(out.plaintext, s.device.PSK)
	if err != nil {
		return err
	}
	if err := chunk.CheckFrame(envelope.FrameLen(len(out.plaintext))); err != nil {
		return err
	}

	w, err := s.disp.Expect()
	if err != nil {
		return err
	}

	ackCtx, cancel := context.WithTimeout(ctx, s.o.cfg.AckTimeout)
	defer cancel()

	ev := out.event
	ev.Size = len(out.plaintext)
	s.trace().Message(log.DirectionOut, ev)

	if err := s.o.link.Write(ackCtx, s.conn, out.char, frame); err != nil {
		w.Cancel()
		return waitError(ctx, err, "write "+out.char.String())
	}
	if err := w.Wait(ackCtx); err != nil {
		return waitError(ctx, err, "acknowledgment of "+out.char.String())
	}

	s.mu.Lock()
	s.records++
	s.mu.Unlock()
	return nil
}

// inboundEvent describes a notification for the protocol trace.
func inboundEvent(msg notify.Message) log.MessageEvent {
	ev := log.MessageEvent{Type: notify.TypeOf(msg)}
	if ev.Type == "" {
		ev.Type = "untyped"
	}
	switch m := msg.(type) {
	case notify.WifiScanEvent:
		rssi, count := m.RSSI, m.Count
		ev.SSID = m.SSID
		ev.RSSI = &rssi
		ev.Count = &count
	case notify.ProvisionEvent:
		ev.Status = string(m.Status)
	}
	return ev
}
