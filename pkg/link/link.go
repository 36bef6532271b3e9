package link

import (
	"context"
	"errors"
	"fmt"
)

// ErrLink is the category of every transport failure: scan, connect, GATT
// discovery, write or link loss.
var ErrLink = errors.New("ble link error")

// Link errors. All of them wrap ErrLink.
var (
	ErrScanActive       = fmt.Errorf("%w: scan already in progress", ErrLink)
	ErrAlreadyConnected = fmt.Errorf("%w: already connected", ErrLink)
	ErrNotConnected     = fmt.Errorf("%w: not connected", ErrLink)
	ErrMissingService   = fmt.Errorf("%w: provisioning service not found", ErrLink)
	ErrMissingChar      = fmt.Errorf("%w: characteristic not found", ErrLink)
)

// ServiceUUID is the 16-bit UUID of the provisioning service.
const ServiceUUID uint16 = 0xFFFF

// Characteristic is a 16-bit GATT characteristic UUID of the provisioning
// service.
type Characteristic uint16

// Provisioning characteristics.
const (
	CharPoP       Characteristic = 0xFF01
	CharWifi      Characteristic = 0xFF02
	CharRootCA    Characteristic = 0xFF03
	CharThingCert Characteristic = 0xFF04
	CharThingKey  Characteristic = 0xFF05
	CharNotify    Characteristic = 0xFF06
)

// Characteristics lists every characteristic the service must expose.
var Characteristics = []Characteristic{
	CharPoP, CharWifi, CharRootCA, CharThingCert, CharThingKey, CharNotify,
}

// String returns the characteristic name.
func (c Characteristic) String() string {
	switch c {
	case CharPoP:
		return "pop"
	case CharWifi:
		return "wifi"
	case CharRootCA:
		return "root_ca"
	case CharThingCert:
		return "thing_cert"
	case CharThingKey:
		return "thing_key"
	case CharNotify:
		return "notify"
	default:
		return fmt.Sprintf("0x%04x", uint16(c))
	}
}

// Writable reports whether the client writes to c.
func (c Characteristic) Writable() bool {
	return c >= CharPoP && c <= CharThingKey
}

// Peripheral is an advertising device seen during a scan.
type Peripheral struct {
	// Address is the radio address (MAC or platform UUID).
	Address string

	// Name is the advertised local name, the device identity.
	Name string

	// RSSI is the advertisement signal strength in dBm.
	RSSI int16
}

// Adapter is a BLE radio.
type Adapter interface {
	// Enable powers up the radio. It is safe to call more than once.
	Enable() error

	// Scan reports advertisements to found until StopScan is called or ctx
	// is done. It blocks for the duration of the scan.
	Scan(ctx context.Context, found func(Peripheral)) error

	// StopScan ends a running scan.
	StopScan() error

	// Connect opens a connection to p.
	Connect(ctx context.Context, p Peripheral) (Device, error)
}

// Device is a connected GATT peripheral.
type Device interface {
	// Characteristics returns the characteristics of the given service.
	// It returns ErrMissingService if the service is absent.
	Characteristics(ctx context.Context, service uint16) ([]Characteristic, error)

	// Subscribe enables notifications on c. onError receives asynchronous
	// link failures such as an unexpected disconnect.
	Subscribe(c Characteristic, onNotify func([]byte), onError func(error)) error

	// Unsubscribe disables notifications on c.
	Unsubscribe(c Characteristic) error

	// Write writes data to c and waits for the write response. data is the
	// attribute value as the device receives it.
	Write(ctx context.Context, c Characteristic, data []byte) error

	// Disconnect closes the connection.
	Disconnect() error
}
