// Package notify decodes device notifications and reconciles them with the
// client's sequential write stream.
//
// The device answers every accepted write with a provision/progress
// notification and reports Wi-Fi scan results as a series of wifi_scan
// notifications whose count field counts down to zero. Notifications travel
// in plaintext: unlike outbound frames they are not enveloped.
package notify

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned for frames that are neither base64 JSON nor raw
// JSON objects.
var ErrMalformed = errors.New("malformed notification")

// Message type tags.
const (
	TypeWifiScan  = "wifi_scan"
	TypeProvision = "provision"
)

// Status is the state carried by a provision notification.
type Status string

// Provision statuses.
const (
	StatusProgress Status = "progress"
	StatusDone     Status = "done"
	StatusFail     Status = "fail"
)

// Message is a decoded notification: WifiScanEvent, ProvisionEvent or
// Unrecognized.
type Message interface {
	messageType() string
}

// WifiScanEvent reports one access point seen by the device. Count is the
// number of events still to follow; zero marks the end of the scan.
type WifiScanEvent struct {
	SSID  string
	RSSI  int
	Count int
}

// ProvisionEvent reports the device's provisioning state.
type ProvisionEvent struct {
	Status Status
}

// Unrecognized is a well-formed JSON notification of unknown shape.
type Unrecognized struct {
	Type string
	Raw  []byte
}

func (WifiScanEvent) messageType() string  { return TypeWifiScan }
func (ProvisionEvent) messageType() string { return TypeProvision }
func (u Unrecognized) messageType() string { return u.Type }

// TypeOf returns the wire type tag of a message.
func TypeOf(m Message) string {
	if m == nil {
		return ""
	}
	return m.messageType()
}

type wireMessage struct {
	Type   string  `json:"type"`
	SSID   *string `json:"ssid"`
	RSSI   int     `json:"rssi"`
	Count  *int    `json:"count"`
	Status Status  `json:"status"`
}

// Decode parses a notification frame. Frames are normally base64 encoded
// JSON; a frame starting with '{' is taken as raw JSON.
func Decode(frame []byte) (Message, error) {
	payload := frame
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	if frame[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(frame))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		payload = decoded
	}

	var w wireMessage
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch w.Type {
	case TypeWifiScan:
		if w.SSID != nil && w.Count != nil && *w.Count >= 0 {
			return WifiScanEvent{SSID: *w.SSID, RSSI: w.RSSI, Count: *w.Count}, nil
		}
	case TypeProvision:
		switch w.Status {
		case StatusProgress, StatusDone, StatusFail:
			return ProvisionEvent{Status: w.Status}, nil
		}
	}
	return Unrecognized{Type: w.Type, Raw: payload}, nil
}

// Encode returns the base64 frame for a message. It is the inverse of Decode
// and is used by simulated devices.
func Encode(m Message) ([]byte, error) {
	var v any
	switch m := m.(type) {
	case WifiScanEvent:
		v = map[string]any{"type": TypeWifiScan, "ssid": m.SSID, "rssi": m.RSSI, "count": m.Count}
	case ProvisionEvent:
		v = map[string]any{"type": TypeProvision, "status": m.Status}
	case Unrecognized:
		return []byte(base64.StdEncoding.EncodeToString(m.Raw)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrMalformed, m)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []byte(base64.StdEncoding.EncodeToString(data)), nil
}
