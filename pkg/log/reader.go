package log

import (
	"errors"
	"io"
	"os"
	"time"
)

// Filter selects trace events. Zero fields match everything.
type Filter struct {
	SessionID string
	DeviceID  string
	PeerAddr  string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

func (f *Filter) matches(e Event) bool {
	switch {
	case f.SessionID != "" && e.SessionID != f.SessionID,
		f.DeviceID != "" && e.DeviceID != f.DeviceID,
		f.PeerAddr != "" && e.PeerAddr != f.PeerAddr,
		f.Direction != nil && e.Direction != *f.Direction,
		f.Layer != nil && e.Layer != *f.Layer,
		f.Category != nil && e.Category != *f.Category,
		f.TimeStart != nil && e.Timestamp.Before(*f.TimeStart),
		f.TimeEnd != nil && !e.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader streams events from a .plog file. A record that fails to decode
// or validate stops the stream with an error naming its position.
type Reader struct {
	file   *os.File
	dec    *decoder
	filter Filter
}

// NewReader opens the trace at path.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens the trace at path and yields only events that
// match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, dec: newDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the trace.
func (r *Reader) Next() (Event, error) {
	for {
		event, err := r.dec.decode()
		if err != nil {
			return Event{}, err
		}
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// ReadAll returns the remaining matching events. On error the events read
// so far are returned with it.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
}

// Close closes the trace file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadSession returns the events of one session in the trace at path, in
// the order they were written.
func ReadSession(path, sessionID string) ([]Event, error) {
	r, err := NewFilteredReader(path, Filter{SessionID: sessionID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}
