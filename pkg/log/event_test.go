package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{DirectionIn.String(), "IN"},
		{DirectionOut.String(), "OUT"},
		{Direction(9).String(), "UNKNOWN"},
		{LayerLink.String(), "LINK"},
		{LayerMessage.String(), "MESSAGE"},
		{LayerSession.String(), "SESSION"},
		{Layer(9).String(), "UNKNOWN"},
		{CategoryMessage.String(), "MESSAGE"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(9).String(), "UNKNOWN"},
		{StateEntityLink.String(), "LINK"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseLayer(t *testing.T) {
	for _, l := range []Layer{LayerLink, LayerMessage, LayerSession} {
		got, ok := ParseLayer(l.String())
		if !ok || got != l {
			t.Errorf("ParseLayer(%q) = %v, %v", l.String(), got, ok)
		}
	}
	if _, ok := ParseLayer("WIRE"); ok {
		t.Error("ParseLayer accepted an unknown layer")
	}
}

func TestNewFrameEventTruncates(t *testing.T) {
	small := NewFrameEvent(0xff02, []byte{1, 2, 3})
	if small.Size != 3 || small.Truncated || small.Characteristic != 0xff02 {
		t.Errorf("unexpected small frame event: %+v", small)
	}

	big := bytes.Repeat([]byte{0xaa}, MaxFrameData+10)
	fe := NewFrameEvent(0xff06, big)
	if fe.Size != MaxFrameData+10 {
		t.Errorf("Size = %d, want %d", fe.Size, MaxFrameData+10)
	}
	if !fe.Truncated || len(fe.Data) != MaxFrameData {
		t.Errorf("Truncated=%v len(Data)=%d", fe.Truncated, len(fe.Data))
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	ready := 1
	rssi := -61
	count := 0
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	events := []Event{
		{
			Timestamp: ts, SessionID: "s1", Direction: DirectionOut, Layer: LayerLink,
			Category: CategoryMessage, DeviceID: "id24A160E1B2C3", PeerAddr: "AA:BB:CC:DD:EE:FF",
			Frame: NewFrameEvent(0xff03, []byte("frame")),
		},
		{
			Timestamp: ts, SessionID: "s1", Direction: DirectionOut, Layer: LayerMessage,
			Category: CategoryMessage, Message: &MessageEvent{Type: "aws_root_ca", Ready: &ready, Size: 80},
		},
		{
			Timestamp: ts, SessionID: "s1", Direction: DirectionIn, Layer: LayerMessage,
			Category: CategoryMessage, Message: &MessageEvent{Type: "wifi_scan", SSID: "home", RSSI: &rssi, Count: &count},
		},
		{
			Timestamp: ts, SessionID: "s1", Layer: LayerSession, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySession, OldState: "SCANNING", NewState: "POP_EXCHANGE"},
		},
		{
			Timestamp: ts, SessionID: "s1", Layer: LayerLink, Category: CategoryError,
			Error: &ErrorEventData{Layer: LayerLink, Message: "write rejected", Context: "write 0xff03"},
		},
	}

	for i, event := range events {
		data, err := EncodeEvent(event)
		if err != nil {
			t.Fatalf("event %d: EncodeEvent failed: %v", i, err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("event %d: DecodeEvent failed: %v", i, err)
		}
		if !decoded.Timestamp.Equal(event.Timestamp) {
			t.Errorf("event %d: Timestamp = %v, want %v", i, decoded.Timestamp, event.Timestamp)
		}
		if decoded.SessionID != event.SessionID || decoded.Layer != event.Layer || decoded.Category != event.Category {
			t.Errorf("event %d: header mismatch: %+v", i, decoded)
		}
		switch {
		case event.Frame != nil:
			if decoded.Frame == nil || !bytes.Equal(decoded.Frame.Data, event.Frame.Data) ||
				decoded.Frame.Characteristic != event.Frame.Characteristic {
				t.Errorf("event %d: frame mismatch: %+v", i, decoded.Frame)
			}
			if decoded.PeerAddr != event.PeerAddr || decoded.DeviceID != event.DeviceID {
				t.Errorf("event %d: identifiers mismatch", i)
			}
		case event.Message != nil:
			if decoded.Message == nil || decoded.Message.Type != event.Message.Type {
				t.Fatalf("event %d: message mismatch: %+v", i, decoded.Message)
			}
			if event.Message.Ready != nil && (decoded.Message.Ready == nil || *decoded.Message.Ready != 1) {
				t.Errorf("event %d: Ready lost", i)
			}
			if event.Message.Count != nil && (decoded.Message.Count == nil || *decoded.Message.Count != 0) {
				t.Errorf("event %d: zero Count lost", i)
			}
		case event.StateChange != nil:
			if decoded.StateChange == nil || *decoded.StateChange != *event.StateChange {
				t.Errorf("event %d: state change mismatch: %+v", i, decoded.StateChange)
			}
		case event.Error != nil:
			if decoded.Error == nil || *decoded.Error != *event.Error {
				t.Errorf("event %d: error mismatch: %+v", i, decoded.Error)
			}
		}
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp: time.Now(),
		SessionID: "sess-123",
		Direction: DirectionIn,
		Layer:     LayerLink,
		Category:  CategoryMessage,
		Frame:     NewFrameEvent(0xff06, []byte{1}),
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var rawMap map[uint64]any
	if err := decMode.Unmarshal(data, &rawMap); err != nil {
		t.Fatalf("failed to decode as map: %v", err)
	}
	for _, key := range []uint64{1, 2, 3, 4, 5, 10} {
		if _, ok := rawMap[key]; !ok {
			t.Errorf("expected integer key %d not found in encoded data", key)
		}
	}
}
