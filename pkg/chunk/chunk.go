// Package chunk splits PEM secrets into line records small enough for the
// device's receive buffer and defines the plaintext records carried inside
// each envelope.
package chunk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Type tags the secret a record belongs to.
type Type string

// Record types understood by the device firmware.
const (
	TypeWifiCredentials Type = "wifi_credentials"
	TypeRootCA          Type = "aws_root_ca"
	TypeThingCert       Type = "aws_thing_certificate"
	TypeThingKey        Type = "aws_thing_key"
)

// MaxFrameSize is the size of the device's receive buffer. An enveloped
// record must fit in it.
const MaxFrameSize = 256

// Chunk errors.
var (
	ErrRecordTooLarge = errors.New("record exceeds device frame size")
	ErrNotTerminated  = errors.New("record sequence has no final record")
	ErrMixedTypes     = errors.New("record sequence mixes document types")
	ErrAfterFinal     = errors.New("record follows final record")
)

// CheckFrame returns ErrRecordTooLarge if a frame of n bytes, as received by
// the device, would overflow its receive buffer.
func CheckFrame(n int) error {
	if n > MaxFrameSize {
		return fmt.Errorf("%w: %d > %d bytes", ErrRecordTooLarge, n, MaxFrameSize)
	}
	return nil
}

// Document is a multi-line secret such as a PEM certificate or key.
type Document string

// Lines splits the document after every '\n', keeping the terminators.
// A trailing fragment without a newline is returned as the last line.
func (d Document) Lines() []string {
	if d == "" {
		return nil
	}
	lines := strings.SplitAfter(string(d), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Record is one line of a document in transit.
// JSON: {"type": tag, "ready": 0|1, "row": line}
type Record struct {
	Type  Type   `json:"type"`
	Ready int    `json:"ready"`
	Row   string `json:"row"`
}

// Final reports whether this is the last record of its document.
func (r Record) Final() bool {
	return r.Ready == 1
}

// Marshal returns the JSON plaintext of the record.
func (r Record) Marshal() ([]byte, error) {
	return marshal(r)
}

// WifiCredentials is the single credentials record.
// JSON: {"type": "wifi_credentials", "ssid": ..., "password": ...}
type WifiCredentials struct {
	Type     Type   `json:"type"`
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

// NewWifiCredentials returns the credentials record for a network.
func NewWifiCredentials(ssid, password string) WifiCredentials {
	return WifiCredentials{Type: TypeWifiCredentials, SSID: ssid, Password: password}
}

// Marshal returns the JSON plaintext of the record.
func (w WifiCredentials) Marshal() ([]byte, error) {
	return marshal(w)
}

// marshal encodes v without HTML escaping, so '&', '<' and '>' in a
// password or PEM row cost one byte each.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Encoder yields the records of one document in order. It is not
// restartable: once exhausted it keeps returning false.
type Encoder struct {
	tag   Type
	lines []string
	pos   int
	done  bool
}

// NewEncoder returns an encoder over doc.
func NewEncoder(doc Document, tag Type) *Encoder {
	return &Encoder{tag: tag, lines: doc.Lines()}
}

// Next returns the next record. The second return value is false once the
// final record has been emitted.
func (e *Encoder) Next() (Record, bool) {
	if e.done {
		return Record{}, false
	}
	// An empty document still produces one (empty) final record.
	if len(e.lines) == 0 {
		e.done = true
		return Record{Type: e.tag, Ready: 1}, true
	}

	rec := Record{Type: e.tag, Row: e.lines[e.pos]}
	e.pos++
	if e.pos == len(e.lines) {
		rec.Ready = 1
		e.done = true
	}
	return rec, true
}

// Remaining returns how many records are still to be emitted.
func (e *Encoder) Remaining() int {
	if e.done {
		return 0
	}
	if len(e.lines) == 0 {
		return 1
	}
	return len(e.lines) - e.pos
}

// Encode drains an encoder over doc into a slice.
func Encode(doc Document, tag Type) []Record {
	enc := NewEncoder(doc, tag)
	out := make([]Record, 0, enc.Remaining())
	for {
		rec, ok := enc.Next()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

// Reassemble concatenates record rows in order. It fails unless the sequence
// is a single document ending with exactly one final record.
func Reassemble(records []Record) (Document, error) {
	if len(records) == 0 || !records[len(records)-1].Final() {
		return "", ErrNotTerminated
	}
	var sb strings.Builder
	for i, r := range records {
		if r.Type != records[0].Type {
			return "", fmt.Errorf("%w: %q then %q", ErrMixedTypes, records[0].Type, r.Type)
		}
		if r.Final() && i != len(records)-1 {
			return "", fmt.Errorf("%w: at index %d", ErrAfterFinal, i+1)
		}
		sb.WriteString(r.Row)
	}
	return Document(sb.String()), nil
}
