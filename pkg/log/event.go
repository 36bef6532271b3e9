package log

import (
	"time"
)

// Event represents a protocol trace event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the provisioning session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// DeviceID is the device identity being provisioned.
	DeviceID string `cbor:"6,keyasint,omitempty"`

	// PeerAddr is the BLE address of the device (once discovered).
	PeerAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Link layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Message layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Link/session state
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a notification from the device.
	DirectionIn Direction = 0
	// DirectionOut indicates a write to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerLink is the GATT layer (enveloped or notification bytes).
	LayerLink Layer = 0
	// LayerMessage is the record/notification layer (decoded JSON).
	LayerMessage Layer = 1
	// LayerSession is the provisioning state machine.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerLink:
		return "LINK"
	case LayerMessage:
		return "MESSAGE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer returns the layer with the given name (case-sensitive, as
// printed by String).
func ParseLayer(s string) (Layer, bool) {
	for _, l := range []Layer{LayerLink, LayerMessage, LayerSession} {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a frame or decoded record/notification.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 512

// FrameEvent captures raw GATT bytes at the link layer. Outbound frames are
// always enveloped, so Data never holds plaintext secrets.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Characteristic is the 16-bit GATT characteristic UUID.
	Characteristic uint16 `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent captures data, truncating it to MaxFrameData.
func NewFrameEvent(characteristic uint16, data []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(data), Characteristic: characteristic}
	if len(data) > MaxFrameData {
		data = data[:MaxFrameData]
		fe.Truncated = true
	}
	fe.Data = append([]byte(nil), data...)
	return fe
}

// MessageEvent captures a decoded record or notification. Secret fields
// (PEM rows, Wi-Fi password, PoP) are never recorded.
type MessageEvent struct {
	// Type is the record or notification type tag.
	Type string `cbor:"1,keyasint"`

	// Ready is the final-record flag of a chunk record.
	Ready *int `cbor:"2,keyasint,omitempty"`

	// Status is the provision notification status.
	Status string `cbor:"3,keyasint,omitempty"`

	// SSID is the network name of a scan result or credentials record.
	SSID string `cbor:"4,keyasint,omitempty"`

	// RSSI is the signal strength of a scan result.
	RSSI *int `cbor:"5,keyasint,omitempty"`

	// Count is the number of scan results still to follow.
	Count *int `cbor:"6,keyasint,omitempty"`

	// Size is the plaintext size in bytes.
	Size int `cbor:"7,keyasint,omitempty"`
}

// StateChangeEvent captures link and session lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityLink indicates a BLE link state change.
	StateEntityLink StateEntity = 0
	// StateEntitySession indicates a provisioning phase change.
	StateEntitySession StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntitySession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
