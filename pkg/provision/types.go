package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thingprov/thingprov-go/pkg/chunk"
	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/log"
	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

// Session errors. All of them except ErrSessionActive, ErrInvalidPhase,
// ErrScanIncomplete and ErrUnknownNetwork are terminal.
var (
	ErrSessionActive    = errors.New("a provisioning session is already active")
	ErrDiscoveryTimeout = errors.New("device not found")
	ErrTimeout          = errors.New("timed out waiting for device")
	ErrRegistry         = errors.New("device registry failure")
	ErrSecrets          = errors.New("device secrets unavailable")
	ErrSessionAbandoned = errors.New("provisioning abandoned")
	ErrSessionClosed    = errors.New("session closed")
	ErrInvalidPhase     = errors.New("operation not allowed in current phase")
	ErrScanIncomplete   = errors.New("network scan not complete")
	ErrUnknownNetwork   = errors.New("network not reported by device")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Phase is the position of a session in the provisioning flow.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhasePopExchange
	PhaseWifiCollecting
	PhaseNetworkChosen
	PhaseTransferring
	PhaseDone
	PhaseFailed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseScanning:
		return "SCANNING"
	case PhasePopExchange:
		return "POP_EXCHANGE"
	case PhaseWifiCollecting:
		return "WIFI_COLLECTING"
	case PhaseNetworkChosen:
		return "NETWORK_CHOSEN"
	case PhaseTransferring:
		return "TRANSFERRING"
	case PhaseDone:
		return "DONE"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Cause is the reported category of a terminal error.
type Cause uint8

const (
	CauseNone Cause = iota
	CauseInvalidIdentity
	CauseDiscoveryTimeout
	CauseLink
	CauseCrypto
	CauseFrameSize
	CauseDeviceRejected
	CauseTimeout
	CauseRegistry
	CauseSecrets
	CauseAbandoned
	CauseUnknown
)

// String returns the cause name.
func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseInvalidIdentity:
		return "invalid identity"
	case CauseDiscoveryTimeout:
		return "device not found"
	case CauseLink:
		return "link error"
	case CauseCrypto:
		return "crypto error"
	case CauseFrameSize:
		return "record too large"
	case CauseDeviceRejected:
		return "device rejected"
	case CauseTimeout:
		return "timeout"
	case CauseRegistry:
		return "registry error"
	case CauseSecrets:
		return "secrets error"
	case CauseAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// CauseOf maps an error returned by this package to its cause.
func CauseOf(err error) Cause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, ErrSessionAbandoned), errors.Is(err, ErrSessionClosed):
		return CauseAbandoned
	case errors.Is(err, identity.ErrFormat):
		return CauseInvalidIdentity
	case errors.Is(err, ErrDiscoveryTimeout):
		return CauseDiscoveryTimeout
	case errors.Is(err, notify.ErrDeviceRejected):
		return CauseDeviceRejected
	case errors.Is(err, ErrTimeout):
		return CauseTimeout
	case errors.Is(err, ErrRegistry):
		return CauseRegistry
	case errors.Is(err, ErrSecrets):
		return CauseSecrets
	case errors.Is(err, chunk.ErrRecordTooLarge):
		return CauseFrameSize
	case errors.Is(err, envelope.ErrCrypto):
		return CauseCrypto
	case errors.Is(err, link.ErrLink):
		return CauseLink
	default:
		return CauseUnknown
	}
}

// Documents names the secrets fetched for the transfer.
type Documents struct {
	RootCA    string `yaml:"root_ca"`
	ThingCert string `yaml:"thing_cert"`
	ThingKey  string `yaml:"thing_key"`
}

// Config configures an Orchestrator.
type Config struct {
	// Identity is the accepted device identity format.
	Identity identity.Format `yaml:"identity"`

	// ScanTimeout bounds the search for the device.
	ScanTimeout time.Duration `yaml:"scan_timeout"`

	// ConnectTimeout bounds connection and service discovery.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// AckTimeout bounds each write and its acknowledgment.
	AckTimeout time.Duration `yaml:"ack_timeout"`

	// NetworkTimeout bounds the wait for the device's Wi-Fi scan.
	NetworkTimeout time.Duration `yaml:"network_timeout"`

	// DoneTimeout bounds the wait for the device to join the network
	// after the last record.
	DoneTimeout time.Duration `yaml:"done_timeout"`

	// Documents names the secrets to transfer.
	Documents Documents `yaml:"documents"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Identity:       identity.DefaultFormat(),
		ScanTimeout:    30 * time.Second,
		ConnectTimeout: 15 * time.Second,
		AckTimeout:     10 * time.Second,
		NetworkTimeout: 30 * time.Second,
		DoneTimeout:    60 * time.Second,
		Documents: Documents{
			RootCA:    secrets.NameRootCA,
			ThingCert: secrets.NameThingCert,
			ThingKey:  secrets.NameThingKey,
		},
	}
}

// Validate checks the config.
func (c *Config) Validate() error {
	if err := c.Identity.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, d := range []time.Duration{c.ScanTimeout, c.ConnectTimeout, c.AckTimeout, c.NetworkTimeout, c.DoneTimeout} {
		if d <= 0 {
			return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
		}
	}
	if c.Documents.RootCA == "" || c.Documents.ThingCert == "" || c.Documents.ThingKey == "" {
		return fmt.Errorf("%w: document names must be set", ErrInvalidConfig)
	}
	return nil
}

// Link is the BLE side of a session. *link.Manager implements it.
type Link interface {
	Scan(ctx context.Context, match func(link.Peripheral) bool) (<-chan link.Peripheral, error)
	StopScan() error
	Connect(ctx context.Context, p link.Peripheral) (*link.Conn, error)
	DiscoverCapabilities(ctx context.Context, c *link.Conn) error
	Subscribe(c *link.Conn, onFrame func([]byte), onError func(error)) error
	Write(ctx context.Context, c *link.Conn, ch link.Characteristic, frame []byte) error
	Disconnect(c *link.Conn) error
	MarkComplete()
	SetTracer(t *log.Tracer)
}

var _ Link = (*link.Manager)(nil)

// Chooser picks the network the device should join. Returning an error
// abandons the session.
type Chooser func(ctx context.Context, networks []notify.WifiNetwork) (ssid, password string, err error)

// EventType identifies a session event.
type EventType uint8

const (
	// EventPhaseChanged - the session entered Event.Phase.
	EventPhaseChanged EventType = iota

	// EventNetworkFound - the device reported Event.Network.
	EventNetworkFound

	// EventScanComplete - the device finished its scan; Event.Networks
	// holds the full list.
	EventScanComplete

	// EventCompleted - the device is provisioned.
	EventCompleted

	// EventFailed - the session failed with Event.Error.
	EventFailed
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventPhaseChanged:
		return "PHASE_CHANGED"
	case EventNetworkFound:
		return "NETWORK_FOUND"
	case EventScanComplete:
		return "SCAN_COMPLETE"
	case EventCompleted:
		return "COMPLETED"
	case EventFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to observers.
type Event struct {
	Type      EventType
	SessionID string
	DeviceID  identity.ID
	Phase     Phase
	Network   notify.WifiNetwork
	Networks  []notify.WifiNetwork
	Error     error
}

// Observer receives session events. Observers run on the goroutine that
// caused the event and must not block.
type Observer func(Event)

// Result summarizes a finished session.
type Result struct {
	SessionID string
	DeviceID  identity.ID
	Address   string
	Network   string
	Phase     Phase
	Records   int
	Duration  time.Duration
	Err       error
	Cause     Cause
}
