// Package registry looks up the per-device secrets needed to provision a
// device (pre-shared key and proof of possession) and records successful
// provisioning with the cloud.
package registry

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/thingprov/thingprov-go/pkg/envelope"
	"github.com/thingprov/thingprov-go/pkg/identity"
)

// PoPLength is the length of a proof of possession: 16 random bytes in hex.
const PoPLength = 32

// Registry errors.
var (
	ErrNotFound      = errors.New("device not found")
	ErrInvalidDevice = errors.New("invalid device record")
	ErrUnavailable   = errors.New("registry unavailable")
)

// Device is the registry record of a device.
type Device struct {
	ID              identity.ID
	PSK             envelope.Key
	PoP             string
	Type            string
	HardwareVersion string
	Provisioned     bool
}

// Validate checks the key size and the PoP shape.
func (d Device) Validate() error {
	if err := d.PSK.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}
	if len(d.PoP) != PoPLength {
		return fmt.Errorf("%w: pop must be %d hex characters, got %d", ErrInvalidDevice, PoPLength, len(d.PoP))
	}
	if _, err := hex.DecodeString(d.PoP); err != nil {
		return fmt.Errorf("%w: pop is not hex", ErrInvalidDevice)
	}
	return nil
}

// Registry is the cloud collaborator of a provisioning session.
type Registry interface {
	// LookupDevice returns the secrets of a device.
	LookupDevice(ctx context.Context, id identity.ID) (Device, error)

	// MarkProvisioned records that the device completed provisioning.
	MarkProvisioned(ctx context.Context, id identity.ID) error
}

// recordFromHex builds a Device from the hex key and PoP as stored by the
// factory and the cloud.
func recordFromHex(id identity.ID, aes, pop string) (Device, error) {
	key, err := envelope.ParseKey(aes)
	if err != nil {
		return Device{}, fmt.Errorf("%w: %s: %v", ErrInvalidDevice, id, err)
	}
	d := Device{ID: id, PSK: key, PoP: pop}
	if err := d.Validate(); err != nil {
		return Device{}, err
	}
	return d, nil
}
