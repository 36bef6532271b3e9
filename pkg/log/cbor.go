package log

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidEvent is returned for events that are not a well-formed session
// trace entry.
var ErrInvalidEvent = errors.New("invalid trace event")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace encoder mode: %v", err))
	}

	// A trace file is appended to across runs and may end in a torn
	// record; duplicate keys are tolerated, unknown fields ignored.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace decoder mode: %v", err))
	}
}

// Validate checks that e belongs to a session and that its layer, category
// and payload agree with each other:
//
//	MESSAGE  Frame at LINK, or Message at MESSAGE
//	STATE    StateChange at the layer of its entity
//	ERROR    Error at the layer it names
func (e Event) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("%w: no session", ErrInvalidEvent)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: no timestamp", ErrInvalidEvent)
	}
	if e.Direction != DirectionIn && e.Direction != DirectionOut {
		return fmt.Errorf("%w: direction %d", ErrInvalidEvent, e.Direction)
	}
	if _, ok := ParseLayer(e.Layer.String()); !ok {
		return fmt.Errorf("%w: layer %d", ErrInvalidEvent, e.Layer)
	}

	payloads := 0
	for _, set := range []bool{e.Frame != nil, e.Message != nil, e.StateChange != nil, e.Error != nil} {
		if set {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: %d payloads", ErrInvalidEvent, payloads)
	}

	switch e.Category {
	case CategoryMessage:
		switch {
		case e.Frame != nil && e.Layer == LayerLink:
			return e.Frame.validate()
		case e.Message != nil && e.Layer == LayerMessage:
			if e.Message.Type == "" {
				return fmt.Errorf("%w: untyped message", ErrInvalidEvent)
			}
			return nil
		}
	case CategoryState:
		sc := e.StateChange
		if sc == nil || sc.NewState == "" {
			break
		}
		if sc.Entity == StateEntityLink && e.Layer == LayerLink ||
			sc.Entity == StateEntitySession && e.Layer == LayerSession {
			return nil
		}
	case CategoryError:
		if e.Error != nil && e.Error.Layer == e.Layer {
			return nil
		}
	default:
		return fmt.Errorf("%w: category %d", ErrInvalidEvent, e.Category)
	}
	return fmt.Errorf("%w: %s payload does not fit %s at %s", ErrInvalidEvent, e.payloadName(), e.Category, e.Layer)
}

func (e Event) payloadName() string {
	switch {
	case e.Frame != nil:
		return "frame"
	case e.Message != nil:
		return "message"
	case e.StateChange != nil:
		return "state"
	default:
		return "error"
	}
}

func (f *FrameEvent) validate() error {
	switch {
	case f.Truncated && (len(f.Data) != MaxFrameData || f.Size <= MaxFrameData):
		return fmt.Errorf("%w: truncated frame keeps %d of %d bytes", ErrInvalidEvent, len(f.Data), f.Size)
	case !f.Truncated && len(f.Data) != f.Size:
		return fmt.Errorf("%w: frame of %d bytes carries %d", ErrInvalidEvent, f.Size, len(f.Data))
	}
	return nil
}

// EncodeEvent validates event and encodes it with integer keys.
func EncodeEvent(event Event) ([]byte, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	return encMode.Marshal(event)
}

// DecodeEvent decodes and validates one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := decMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	if err := event.Validate(); err != nil {
		return Event{}, err
	}
	return event, nil
}

// encoder appends validated events to a stream.
type encoder struct {
	enc *cbor.Encoder
}

func newEncoder(w io.Writer) *encoder {
	return &encoder{enc: encMode.NewEncoder(w)}
}

func (e *encoder) encode(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	return e.enc.Encode(event)
}

// decoder reads events from a stream and numbers them from 1 so errors
// point at the offending record.
type decoder struct {
	dec *cbor.Decoder
	n   int
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{dec: decMode.NewDecoder(r)}
}

func (d *decoder) decode() (Event, error) {
	var event Event
	if err := d.dec.Decode(&event); err != nil {
		if errors.Is(err, io.EOF) {
			return Event{}, io.EOF
		}
		return Event{}, fmt.Errorf("event %d: %w", d.n+1, err)
	}
	d.n++
	if err := event.Validate(); err != nil {
		return Event{}, fmt.Errorf("event %d: %w", d.n, err)
	}
	return event, nil
}
