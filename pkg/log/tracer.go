package log

import "time"

// Logger receives the trace events of a session. Log is called from the
// session goroutine and the notification callback, so implementations must
// be safe for concurrent use and must not block.
type Logger interface {
	Log(event Event)
}

// NoopLogger discards events.
type NoopLogger struct{}

func (NoopLogger) Log(Event) {}

// tee hands each event to several loggers in order.
type tee []Logger

func (t tee) Log(event Event) {
	for _, l := range t {
		l.Log(event)
	}
}

// Tee combines loggers into one. Nil and no-op loggers are left out, so
// Tee returns a NoopLogger when nothing remains and the logger itself when
// only one does.
func Tee(loggers ...Logger) Logger {
	var out tee
	for _, l := range loggers {
		switch l.(type) {
		case nil, NoopLogger, *NoopLogger:
			continue
		}
		out = append(out, l)
	}
	switch len(out) {
	case 0:
		return NoopLogger{}
	case 1:
		return out[0]
	}
	return out
}

// Tracer stamps events with a session and device before handing them to a
// Logger. A nil *Tracer or one with a nil Logger discards events.
type Tracer struct {
	logger    Logger
	sessionID string
	deviceID  string
	peerAddr  string
	now       func() time.Time
}

// NewTracer creates a Tracer for one provisioning session.
func NewTracer(logger Logger, sessionID string) *Tracer {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Tracer{logger: logger, sessionID: sessionID, now: time.Now}
}

// SessionID returns the session the tracer stamps events with.
func (t *Tracer) SessionID() string {
	if t == nil {
		return ""
	}
	return t.sessionID
}

// WithDevice returns a copy of t that also stamps the device identity.
func (t *Tracer) WithDevice(deviceID string) *Tracer {
	if t == nil {
		return nil
	}
	c := *t
	c.deviceID = deviceID
	return &c
}

// WithPeer returns a copy of t that also stamps the peer address.
func (t *Tracer) WithPeer(addr string) *Tracer {
	if t == nil {
		return nil
	}
	c := *t
	c.peerAddr = addr
	return &c
}

func (t *Tracer) emit(e Event) {
	if t == nil {
		return
	}
	e.Timestamp = t.now()
	e.SessionID = t.sessionID
	e.DeviceID = t.deviceID
	e.PeerAddr = t.peerAddr
	t.logger.Log(e)
}

// Frame records raw link-layer bytes.
func (t *Tracer) Frame(dir Direction, characteristic uint16, data []byte) {
	if t == nil {
		return
	}
	t.emit(Event{
		Direction: dir,
		Layer:     LayerLink,
		Category:  CategoryMessage,
		Frame:     NewFrameEvent(characteristic, data),
	})
}

// Message records a decoded record or notification.
func (t *Tracer) Message(dir Direction, msg MessageEvent) {
	t.emit(Event{
		Direction: dir,
		Layer:     LayerMessage,
		Category:  CategoryMessage,
		Message:   &msg,
	})
}

// State records a state transition.
func (t *Tracer) State(entity StateEntity, oldState, newState, reason string) {
	layer := LayerSession
	if entity == StateEntityLink {
		layer = LayerLink
	}
	t.emit(Event{
		Layer:    layer,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error records an error at the given layer.
func (t *Tracer) Error(layer Layer, err error, context string) {
	if err == nil {
		return
	}
	t.emit(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
