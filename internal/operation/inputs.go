package operation

import (
	"fmt"

	"github.com/rbright/voxseal/internal/upload"
)

// Slot names one input of an operation form.
type Slot string

const (
	SlotImage  Slot = "image"
	SlotAudio  Slot = "audio"
	SlotAudio1 Slot = "audio1"
	SlotAudio2 Slot = "audio2"
)

// SecondSource selects where the compare flow's second sample comes from.
type SecondSource int

const (
	SourceUpload SecondSource = iota
	SourceRecord
)

func (s SecondSource) String() string {
	if s == SourceRecord {
		return "record"
	}
	return "upload"
}

// inputs is the per-controller holder for validated files. Only the slots
// listed in rules exist for a given kind.
type inputs struct {
	rules     map[Slot]upload.Rule
	files     map[Slot]upload.File
	source    SecondSource
	recording upload.File
}

func newInputs(kind Kind) *inputs {
	rules := map[Kind]map[Slot]upload.Rule{
		KindEmbed:   {SlotImage: upload.ImageRule, SlotAudio: upload.EmbedAudioRule},
		KindExtract: {SlotImage: upload.ImageRule},
		KindCompare: {SlotAudio1: upload.CompareAudioRule, SlotAudio2: upload.CompareAudioRule},
	}[kind]
	return &inputs{rules: rules, files: map[Slot]upload.File{}}
}

func (in *inputs) set(slot Slot, candidate upload.Candidate) (upload.File, error) {
	rule, ok := in.rules[slot]
	if !ok {
		return upload.File{}, fmt.Errorf("unknown input %q", slot)
	}
	file, err := upload.Validate(candidate, rule)
	if err != nil {
		return upload.File{}, err
	}
	in.files[slot] = file
	return file, nil
}

func (in *inputs) get(slot Slot) (upload.File, bool) {
	if slot == SlotAudio2 && in.source == SourceRecord {
		return in.recording, !in.recording.IsZero()
	}
	file, ok := in.files[slot]
	return file, ok
}

// setSource switches the second compare sample and drops the alternative
// that is no longer selected.
func (in *inputs) setSource(source SecondSource) {
	if in.source == source {
		return
	}
	in.source = source
	if source == SourceRecord {
		delete(in.files, SlotAudio2)
	} else {
		in.recording = upload.File{}
	}
}

func (in *inputs) clear() {
	in.files = map[Slot]upload.File{}
	in.recording = upload.File{}
	in.source = SourceUpload
}

// build assembles the request or reports the first missing input.
func (in *inputs) build(kind Kind) (Request, error) {
	switch kind {
	case KindEmbed:
		image, okImage := in.get(SlotImage)
		audio, okAudio := in.get(SlotAudio)
		if !okImage || !okAudio {
			return nil, upload.Missing("Please select both image and audio files")
		}
		return EmbedRequest{Image: image, Audio: audio}, nil
	case KindExtract:
		image, ok := in.get(SlotImage)
		if !ok {
			return nil, upload.Missing("Please select a stego image")
		}
		return ExtractRequest{Image: image}, nil
	case KindCompare:
		a, okA := in.get(SlotAudio1)
		b, okB := in.get(SlotAudio2)
		if !okA || !okB {
			return nil, upload.Missing("Please select both audio files or record audio for comparison")
		}
		return CompareRequest{AudioA: a, AudioB: b}, nil
	default:
		return nil, fmt.Errorf("unknown operation %q", kind)
	}
}
