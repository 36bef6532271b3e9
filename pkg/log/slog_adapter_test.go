package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newJSONAdapter(buf *bytes.Buffer) *SlogAdapter {
	handler := slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogAdapter(slog.New(handler))
}

func parseEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsFrameEvent(t *testing.T) {
	var buf bytes.Buffer
	newJSONAdapter(&buf).Log(Event{
		Timestamp: time.Now(),
		SessionID: "sess-123",
		Direction: DirectionOut,
		Layer:     LayerLink,
		Category:  CategoryMessage,
		Frame:     NewFrameEvent(0xff02, make([]byte, 64)),
	})

	entry := parseEntry(t, &buf)
	if entry["session_id"] != "sess-123" {
		t.Errorf("session_id: got %v", entry["session_id"])
	}
	if entry["direction"] != "OUT" {
		t.Errorf("direction: got %v", entry["direction"])
	}
	if entry["layer"] != "LINK" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["frame_size"] != float64(64) {
		t.Errorf("frame_size: got %v", entry["frame_size"])
	}
	if entry["characteristic"] != "0xff02" {
		t.Errorf("characteristic: got %v", entry["characteristic"])
	}
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	var buf bytes.Buffer
	count := 0
	newJSONAdapter(&buf).Log(Event{
		Timestamp: time.Now(),
		SessionID: "sess-456",
		Direction: DirectionIn,
		Layer:     LayerMessage,
		Category:  CategoryMessage,
		DeviceID:  "id24A160E1B2C3",
		Message:   &MessageEvent{Type: "wifi_scan", SSID: "home", Count: &count},
	})

	entry := parseEntry(t, &buf)
	if entry["msg_type"] != "wifi_scan" {
		t.Errorf("msg_type: got %v", entry["msg_type"])
	}
	if entry["ssid"] != "home" {
		t.Errorf("ssid: got %v", entry["ssid"])
	}
	if entry["count"] != float64(0) {
		t.Errorf("count: got %v", entry["count"])
	}
	if entry["device_id"] != "id24A160E1B2C3" {
		t.Errorf("device_id: got %v", entry["device_id"])
	}
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	var buf bytes.Buffer
	newJSONAdapter(&buf).Log(Event{
		Timestamp: time.Now(),
		SessionID: "abc12345-def6-7890",
		Layer:     LayerSession,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntitySession,
			OldState: "TRANSFERRING",
			NewState: "FAILED",
			Reason:   "device reported provisioning failure",
		},
	})

	output := buf.String()
	for _, want := range []string{"abc12345-def6-7890", "TRANSFERRING", "FAILED", "device reported"} {
		if !strings.Contains(output, want) {
			t.Errorf("output does not contain %q", want)
		}
	}
}

func TestSlogAdapterInterfaceSatisfaction(t *testing.T) {
	var _ Logger = (*SlogAdapter)(nil)
}
