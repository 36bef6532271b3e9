// Package ble implements link.Adapter on top of tinygo.org/x/bluetooth,
// which drives BlueZ on Linux, CoreBluetooth on macOS and WinRT on Windows.
package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/thingprov/thingprov-go/pkg/link"
)

// ErrLinkLost is reported to subscribers when the peripheral disconnects.
var ErrLinkLost = errors.New("peripheral disconnected")

// Adapter is a link.Adapter backed by a host Bluetooth controller.
type Adapter struct {
	radio *bluetooth.Adapter

	mu       sync.Mutex
	devices  map[string]*Device
	handlers bool
}

// New wraps radio. Pass nil to use bluetooth.DefaultAdapter.
func New(radio *bluetooth.Adapter) *Adapter {
	if radio == nil {
		radio = bluetooth.DefaultAdapter
	}
	return &Adapter{radio: radio, devices: make(map[string]*Device)}
}

// Enable implements link.Adapter.
func (a *Adapter) Enable() error {
	if err := a.radio.Enable(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.handlers {
		a.radio.SetConnectHandler(a.onConnectEvent)
		a.handlers = true
	}
	return nil
}

func (a *Adapter) onConnectEvent(dev bluetooth.Device, connected bool) {
	if connected {
		return
	}
	a.mu.Lock()
	d := a.devices[dev.Address.String()]
	a.mu.Unlock()
	if d != nil {
		d.lost()
	}
}

// Scan implements link.Adapter.
func (a *Adapter) Scan(ctx context.Context, found func(link.Peripheral)) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = a.radio.StopScan()
		case <-done:
		}
	}()

	return a.radio.Scan(func(_ *bluetooth.Adapter, res bluetooth.ScanResult) {
		found(link.Peripheral{
			Address: res.Address.String(),
			Name:    res.LocalName(),
			RSSI:    res.RSSI,
		})
	})
}

// StopScan implements link.Adapter.
func (a *Adapter) StopScan() error {
	return a.radio.StopScan()
}

// Connect implements link.Adapter.
func (a *Adapter) Connect(ctx context.Context, p link.Peripheral) (link.Device, error) {
	var addr bluetooth.Address
	addr.Set(p.Address)

	type result struct {
		dev bluetooth.Device
		err error
	}
	ch := make(chan result, 1)
	go func() {
		dev, err := a.radio.Connect(addr, bluetooth.ConnectionParams{})
		ch <- result{dev, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		d := &Device{adapter: a, dev: r.dev, address: p.Address}
		a.mu.Lock()
		a.devices[p.Address] = d
		a.mu.Unlock()
		return d, nil
	case <-ctx.Done():
		// Drop a connection that completes after the caller gave up.
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.dev.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

func (a *Adapter) forget(address string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.devices, address)
}

// Device is a connected peripheral.
type Device struct {
	adapter *Adapter
	dev     bluetooth.Device
	address string

	mu      sync.Mutex
	chars   map[link.Characteristic]bluetooth.DeviceCharacteristic
	onError func(error)
}

// Characteristics implements link.Device.
func (d *Device) Characteristics(ctx context.Context, service uint16) ([]link.Characteristic, error) {
	type result struct {
		chars []bluetooth.DeviceCharacteristic
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		services, err := d.dev.DiscoverServices([]bluetooth.UUID{bluetooth.New16BitUUID(service)})
		if err != nil || len(services) == 0 {
			ch <- result{err: link.ErrMissingService}
			return
		}
		chars, err := services[0].DiscoverCharacteristics(nil)
		ch <- result{chars, err}
	}()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}

	found := make(map[link.Characteristic]bluetooth.DeviceCharacteristic, len(r.chars))
	out := make([]link.Characteristic, 0, len(r.chars))
	for _, c := range r.chars {
		uuid := c.UUID()
		if !uuid.Is16Bit() {
			continue
		}
		id := link.Characteristic(uuid.Get16Bit())
		found[id] = c
		out = append(out, id)
	}

	d.mu.Lock()
	d.chars = found
	d.mu.Unlock()
	return out, nil
}

func (d *Device) characteristic(c link.Characteristic) (bluetooth.DeviceCharacteristic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.chars[c]
	if !ok {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("characteristic %s not discovered", c)
	}
	return ch, nil
}

// Subscribe implements link.Device.
func (d *Device) Subscribe(c link.Characteristic, onNotify func([]byte), onError func(error)) error {
	ch, err := d.characteristic(c)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.onError = onError
	d.mu.Unlock()

	return ch.EnableNotifications(func(buf []byte) {
		// The radio reuses buf after the callback returns.
		onNotify(append([]byte(nil), buf...))
	})
}

// Unsubscribe implements link.Device.
func (d *Device) Unsubscribe(c link.Characteristic) error {
	ch, err := d.characteristic(c)
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.onError = nil
	d.mu.Unlock()
	return ch.EnableNotifications(nil)
}

// Write implements link.Device.
func (d *Device) Write(ctx context.Context, c link.Characteristic, data []byte) error {
	ch, err := d.characteristic(c)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		_, err := ch.Write(data)
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect implements link.Device.
func (d *Device) Disconnect() error {
	d.adapter.forget(d.address)
	return d.dev.Disconnect()
}

func (d *Device) lost() {
	d.mu.Lock()
	onError := d.onError
	d.mu.Unlock()
	if onError != nil {
		onError(ErrLinkLost)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ link.Adapter = (*Adapter)(nil)
	_ link.Device  = (*Device)(nil)
)
