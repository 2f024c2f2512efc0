package session

import (
	"bytes"
	"time"

	"github.com/rbright/voxseal/internal/audio"
	"github.com/rbright/voxseal/internal/fsm"
	"github.com/rbright/voxseal/internal/upload"
)

const (
	RecordingName     = "recording.wav"
	RecordingMIMEType = "audio/wav"
)

// Recording is a finished capture session. Blob is nil for a session that
// never stopped cleanly.
type Recording struct {
	State     fsm.State
	Chunks    [][]byte
	Blob      []byte
	Device    string
	StartedAt time.Time
	StoppedAt time.Time
}

func newRecording(chunks [][]byte, device string, startedAt time.Time) Recording {
	pcm := bytes.Join(chunks, nil)
	return Recording{
		State:     fsm.StateStopped,
		Chunks:    chunks,
		Blob:      audio.EncodeWAV(pcm, audio.SampleRate, audio.Channels),
		Device:    device,
		StartedAt: startedAt,
		StoppedAt: time.Now(),
	}
}

// PCMBytes is the captured audio size without the container header.
func (r Recording) PCMBytes() int {
	n := 0
	for _, chunk := range r.Chunks {
		n += len(chunk)
	}
	return n
}

// Duration is derived from the captured sample count, not wall time.
func (r Recording) Duration() time.Duration {
	return time.Duration(audio.PCMDuration(r.PCMBytes())) * time.Millisecond
}

// File exposes the recording as an upload input.
func (r Recording) File() upload.File {
	return upload.NewFile(RecordingName, RecordingMIMEType, r.Blob)
}
