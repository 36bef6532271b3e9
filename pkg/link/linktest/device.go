// Package linktest provides an in-memory provisioning device for tests and
// dry runs. Device implements both link.Adapter and link.Device and plays
// the firmware side of the protocol: it checks the proof of possession,
// reports a Wi-Fi scan, acknowledges every record and finally reports done
// or fail.
package linktest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/thingprov/thingprov-go/pkg/chunk"
	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/notify"
)

// Errors reported by the simulated radio.
var (
	ErrDisconnected = errors.New("simulated device disconnected")
	ErrReset        = errors.New("simulated device reset")
)

// Stage is the simulated firmware's position in the protocol.
type Stage int

// Firmware stages, in protocol order.
const (
	StagePoP Stage = iota
	StageWifi
	StageRootCA
	StageThingCert
	StageThingKey
	StageDone
	StageFailed
)

var stageNames = map[Stage]string{
	StagePoP:       "POP",
	StageWifi:      "WIFI",
	StageRootCA:    "ROOT_CA",
	StageThingCert: "THING_CERT",
	StageThingKey:  "THING_KEY",
	StageDone:      "DONE",
	StageFailed:    "FAILED",
}

// String returns the stage name.
func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// stageInput maps each record stage to its characteristic and record type.
var stageInput = map[Stage]struct {
	char link.Characteristic
	tag  chunk.Type
}{
	StageRootCA:    {link.CharRootCA, chunk.TypeRootCA},
	StageThingCert: {link.CharThingCert, chunk.TypeThingCert},
	StageThingKey:  {link.CharThingKey, chunk.TypeThingKey},
}

// Config describes the simulated device.
type Config struct {
	// Name is the advertised identity.
	Name string

	// Address is the radio address. Defaults to a fixed MAC.
	Address string

	// Key is the pre-shared envelope key.
	Key envelope.Key

	// PoP is the expected proof of possession.
	PoP string

	// Networks are reported after a valid PoP, in order.
	Networks []notify.WifiNetwork

	// WifiPassword, if set, must match the submitted password for the
	// device to report done.
	WifiPassword string

	// RawNotifications sends notification JSON without base64 encoding.
	RawNotifications bool

	// FailAtWrite answers the n-th write (1-based) with fail. Zero never.
	FailAtWrite int

	// SilentAfter stops acknowledging writes after the n-th one. Zero never.
	SilentAfter int

	// AckDelay delays every notification.
	AckDelay time.Duration

	// Missing characteristics are left out of the GATT table.
	Missing []link.Characteristic

	// Decoys are advertised alongside the device.
	Decoys []link.Peripheral
}

type note struct {
	frame    []byte
	err      error
	progress bool
}

// Device is a simulated provisioning device.
type Device struct {
	cfg Config

	mu         sync.Mutex
	stage      Stage
	connected  bool
	onNotify   func([]byte)
	onError    func(error)
	queue      chan note
	stop       chan struct{}
	scanStop   chan struct{}
	writes     int
	acks       int
	violations int
	creds      chunk.WifiCredentials
	records    map[chunk.Type][]chunk.Record
	written    []link.Characteristic
}

// New creates a simulated device.
func New(cfg Config) *Device {
	if cfg.Address == "" {
		cfg.Address = "24:A1:60:E1:B2:C3"
	}
	return &Device{
		cfg:     cfg,
		records: make(map[chunk.Type][]chunk.Record),
	}
}

// Peripheral returns the device's advertisement.
func (d *Device) Peripheral() link.Peripheral {
	return link.Peripheral{Address: d.cfg.Address, Name: d.cfg.Name, RSSI: -52}
}

// Enable implements link.Adapter.
func (d *Device) Enable() error { return nil }

// Scan implements link.Adapter. Decoys are advertised before the device.
func (d *Device) Scan(ctx context.Context, found func(link.Peripheral)) error {
	stop := make(chan struct{})
	d.mu.Lock()
	d.scanStop = stop
	d.mu.Unlock()

	for _, p := range d.cfg.Decoys {
		found(p)
	}
	found(d.Peripheral())

	select {
	case <-stop:
	case <-ctx.Done():
	}
	return nil
}

// StopScan implements link.Adapter.
func (d *Device) StopScan() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.scanStop != nil {
		close(d.scanStop)
		d.scanStop = nil
	}
	return nil
}

// Connect implements link.Adapter.
func (d *Device) Connect(ctx context.Context, p link.Peripheral) (link.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Address != d.cfg.Address {
		return nil, fmt.Errorf("no device at %s", p.Address)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected {
		return nil, errors.New("device busy")
	}
	d.connected = true
	d.queue = make(chan note, 256)
	d.stop = make(chan struct{})
	go d.run(d.queue, d.stop)
	return d, nil
}

// Characteristics implements link.Device.
func (d *Device) Characteristics(ctx context.Context, service uint16) ([]link.Characteristic, error) {
	if service != link.ServiceUUID {
		return nil, link.ErrMissingService
	}
	var out []link.Characteristic
	for _, c := range link.Characteristics {
		missing := false
		for _, m := range d.cfg.Missing {
			if m == c {
				missing = true
			}
		}
		if !missing {
			out = append(out, c)
		}
	}
	return out, nil
}

// Subscribe implements link.Device.
func (d *Device) Subscribe(c link.Characteristic, onNotify func([]byte), onError func(error)) error {
	if c != link.CharNotify {
		return fmt.Errorf("%s does not notify", c)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrDisconnected
	}
	d.onNotify, d.onError = onNotify, onError
	return nil
}

// Unsubscribe implements link.Device.
func (d *Device) Unsubscribe(link.Characteristic) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNotify, d.onError = nil, nil
	return nil
}

// Disconnect implements link.Device.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return nil
	}
	d.connected = false
	close(d.stop)
	return nil
}

// Write implements link.Device. data is the raw IV and ciphertext, as the
// firmware receives it.
func (d *Device) Write(ctx context.Context, c link.Characteristic, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connected {
		return ErrDisconnected
	}

	d.writes++
	d.written = append(d.written, c)
	if d.writes > d.acks+1 {
		d.violations++
	}

	if d.cfg.FailAtWrite > 0 && d.writes == d.cfg.FailAtWrite {
		d.failLocked()
		return nil
	}
	silent := d.cfg.SilentAfter > 0 && d.writes > d.cfg.SilentAfter

	plaintext, err := envelope.OpenRaw(data, d.cfg.Key)
	if err != nil {
		d.failLocked()
		return nil
	}
	d.handleLocked(c, plaintext, silent)
	return nil
}

func (d *Device) handleLocked(c link.Characteristic, plaintext []byte, silent bool) {
	progress := func() {
		if !silent {
			d.enqueueLocked(notify.ProvisionEvent{Status: notify.StatusProgress}, true)
		}
	}

	switch d.stage {
	case StagePoP:
		if c != link.CharPoP || string(plaintext) != d.cfg.PoP {
			d.failLocked()
			return
		}
		d.stage = StageWifi
		progress()
		n := len(d.cfg.Networks)
		for i, nw := range d.cfg.Networks {
			d.enqueueLocked(notify.WifiScanEvent{SSID: nw.SSID, RSSI: nw.RSSI, Count: n - i - 1}, false)
		}

	case StageWifi:
		var creds chunk.WifiCredentials
		if c != link.CharWifi || json.Unmarshal(plaintext, &creds) != nil ||
			creds.Type != chunk.TypeWifiCredentials {
			d.failLocked()
			return
		}
		d.creds = creds
		d.stage = StageRootCA
		progress()

	case StageRootCA, StageThingCert, StageThingKey:
		want := stageInput[d.stage]
		var rec chunk.Record
		if c != want.char || json.Unmarshal(plaintext, &rec) != nil || rec.Type != want.tag {
			d.failLocked()
			return
		}
		d.records[rec.Type] = append(d.records[rec.Type], rec)
		progress()
		if !rec.Final() {
			return
		}
		if d.stage != StageThingKey {
			d.stage++
			return
		}
		d.finishLocked(silent)

	default:
		d.failLocked()
	}
}

// finishLocked joins the network after the last key record.
func (d *Device) finishLocked(silent bool) {
	ok := notify.Contains(d.cfg.Networks, d.creds.SSID) &&
		(d.cfg.WifiPassword == "" || d.cfg.WifiPassword == d.creds.Password)
	if !ok {
		d.failLocked()
		return
	}
	d.stage = StageDone
	if silent {
		return
	}
	d.enqueueLocked(notify.ProvisionEvent{Status: notify.StatusDone}, false)
	// The firmware reboots into the provisioned image.
	d.queue <- note{err: ErrReset}
}

func (d *Device) failLocked() {
	d.stage = StageFailed
	d.enqueueLocked(notify.ProvisionEvent{Status: notify.StatusFail}, false)
}

func (d *Device) enqueueLocked(m notify.Message, progress bool) {
	frame, err := notify.Encode(m)
	if err != nil {
		return
	}
	if d.cfg.RawNotifications {
		raw, err := rawJSON(m)
		if err != nil {
			return
		}
		frame = raw
	}
	d.queue <- note{frame: frame, progress: progress}
}

func rawJSON(m notify.Message) ([]byte, error) {
	switch m := m.(type) {
	case notify.WifiScanEvent:
		return json.Marshal(map[string]any{"type": notify.TypeWifiScan, "ssid": m.SSID, "rssi": m.RSSI, "count": m.Count})
	case notify.ProvisionEvent:
		return json.Marshal(map[string]any{"type": notify.TypeProvision, "status": m.Status})
	}
	return nil, fmt.Errorf("unsupported message %T", m)
}

func (d *Device) run(queue <-chan note, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case n := <-queue:
			if d.cfg.AckDelay > 0 {
				select {
				case <-time.After(d.cfg.AckDelay):
				case <-stop:
					return
				}
			}
			d.deliver(n)
		}
	}
}

func (d *Device) deliver(n note) {
	d.mu.Lock()
	if n.progress {
		d.acks++
	}
	onNotify, onError := d.onNotify, d.onError
	d.mu.Unlock()

	if n.err != nil {
		if onError != nil {
			onError(n.err)
		}
		return
	}
	if onNotify != nil {
		onNotify(n.frame)
	}
}

// Stage returns the firmware stage.
func (d *Device) Stage() Stage {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stage
}

// Connected reports whether a client is connected.
func (d *Device) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// Writes returns the number of writes received.
func (d *Device) Writes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

// Acks returns the number of progress notifications delivered.
func (d *Device) Acks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acks
}

// LockstepViolations counts writes issued while an earlier write was still
// unacknowledged.
func (d *Device) LockstepViolations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.violations
}

// Written returns the characteristics written, in order.
func (d *Device) Written() []link.Characteristic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]link.Characteristic(nil), d.written...)
}

// Credentials returns the Wi-Fi credentials received.
func (d *Device) Credentials() chunk.WifiCredentials {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.creds
}

// Document reassembles the document received for tag.
func (d *Device) Document(tag chunk.Type) (chunk.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return chunk.Reassemble(d.records[tag])
}

// Compile-time interface satisfaction checks.
var (
	_ link.Adapter = (*Device)(nil)
	_ link.Device  = (*Device)(nil)
)
