package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const chunkSizeBytes = 640 // 20ms @ 16kHz mono s16

// Stream is an open microphone. Chunks is closed once Close has flushed the
// last partial chunk.
type Stream interface {
	Chunks() <-chan []byte
	Device() Device
	Close() error
}

// Microphone acquires an exclusive capture stream.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// PulseMicrophone opens 16 kHz mono s16 record streams on the Pulse server.
type PulseMicrophone struct {
	Preference Preference
	// OnSelect observes the resolved device, including fallback warnings.
	OnSelect func(Selection)
}

func (m PulseMicrophone) Open(ctx context.Context) (Stream, error) {
	selection, err := SelectDevice(ctx, m.Preference)
	if err != nil {
		return nil, err
	}
	if m.OnSelect != nil {
		m.OnSelect(selection)
	}
	return startCapture(selection.Device)
}

type pulseStream struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	done   chan struct{}

	mu      sync.Mutex
	partial []byte
	// unsent holds full chunks a writer could not deliver before Close.
	unsent [][]byte
	closed bool

	writers sync.WaitGroup
	bytes   atomic.Int64
}

func startCapture(device Device) (*pulseStream, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	s := &pulseStream{
		device: device,
		client: client,
		chunks: make(chan []byte, 256),
		done:   make(chan struct{}),
	}

	record, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.write), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("voxseal voice sample"),
	)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.stream = record
	record.Start()
	return s, nil
}

func (s *pulseStream) Device() Device { return s.device }

func (s *pulseStream) Chunks() <-chan []byte { return s.chunks }

func (s *pulseStream) BytesCaptured() int64 { return s.bytes.Load() }

// Close stops recording and releases the Pulse connection, then delivers
// every chunk still held, ending with the partial tail. The consumer must keep
// draining Chunks until it is closed. Later calls are no-ops.
func (s *pulseStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.writers.Wait()

	s.mu.Lock()
	pending := s.unsent
	if len(s.partial) > 0 {
		pending = append(pending, s.partial)
	}
	s.unsent = nil
	s.partial = nil
	s.mu.Unlock()

	for _, chunk := range pending {
		s.chunks <- chunk
	}
	close(s.chunks)
	return nil
}

// write receives raw frames from Pulse and re-slices them into fixed chunks.
func (s *pulseStream) write(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock that guards closed so Close never races Wait.
	s.writers.Add(1)
	defer s.writers.Done()

	s.partial = append(s.partial, buffer...)
	var ready [][]byte
	for len(s.partial) >= chunkSizeBytes {
		ready = append(ready, append([]byte(nil), s.partial[:chunkSizeBytes]...))
		s.partial = s.partial[chunkSizeBytes:]
	}
	s.mu.Unlock()

	s.bytes.Add(int64(len(buffer)))

	for i, chunk := range ready {
		select {
		case s.chunks <- chunk:
		case <-s.done:
			s.mu.Lock()
			s.unsent = append(s.unsent, ready[i:]...)
			s.mu.Unlock()
			return len(buffer), nil
		}
	}
	return len(buffer), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) { return f(b) }
