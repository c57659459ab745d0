package device

import (
	"fmt"

	"github.com/notargets/gocca"
)

// Stream is an OCCA stream on a Device. Work issued inside Do is queued on
// it in order; different streams run concurrently on the device. Once a Do
// fails, later Do calls are skipped until the next Synchronize.
//
// A Device is driven from one goroutine while any of its streams is in use.
type Stream struct {
	id     int
	dev    *Device
	stream *gocca.OCCAStream
	err    error
	closed bool
}

// NewStream creates a device stream
func (d *Device) NewStream(id int) (s *Stream, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, Check("NewStream", fmt.Errorf("%v", r))
		}
	}()

	stream := d.OCCADevice.CreateStream(nil)
	if stream == nil {
		return nil, Check("NewStream", fmt.Errorf("stream creation returned nil"))
	}
	return &Stream{id: id, dev: d, stream: stream}, nil
}

// ID returns the stream's index
func (s *Stream) ID() int {
	return s.id
}

// Do makes s the device's current stream while fn queues work, then restores
// the default stream
func (s *Stream) Do(fn func() error) error {
	if s.closed {
		return fmt.Errorf("stream %d is closed", s.id)
	}
	if s.err != nil {
		return nil
	}
	s.dev.use(s.stream)
	defer s.dev.use(nil)
	if err := fn(); err != nil {
		s.err = fmt.Errorf("stream %d: %w", s.id, err)
		return s.err
	}
	return nil
}

// Synchronize waits for all work queued on s and returns the first error
// since the previous Synchronize
func (s *Stream) Synchronize() error {
	if s.closed {
		return nil
	}
	s.dev.use(s.stream)
	syncErr := s.dev.Sync()
	s.dev.use(nil)

	err := s.err
	s.err = nil
	if err == nil {
		err = syncErr
	}
	return err
}

// Close drains and frees the stream. Safe to call more than once.
func (s *Stream) Close() {
	if s.closed {
		return
	}
	_ = s.Synchronize()
	s.dev.mu.Lock()
	s.stream.Free()
	s.dev.mu.Unlock()
	s.closed = true
}

// SynchronizeAll waits on every stream and returns the first error in
// stream order. Every stream is drained even when an earlier one failed.
func SynchronizeAll(streams []*Stream) error {
	var first error
	for _, s := range streams {
		if err := s.Synchronize(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
