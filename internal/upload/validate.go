package upload

import (
	"errors"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
)

var (
	// ErrRejected marks a candidate that failed its kind constraint.
	ErrRejected = errors.New("file rejected")
	// ErrMissingInput marks a submission attempted without every required input.
	ErrMissingInput = errors.New("missing input")
)

// ValidationError carries the user-facing reason for a rejected or missing input.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Unwrap() error { return e.Err }

// Missing builds the error returned when a required input was never selected.
func Missing(reason string) error {
	return &ValidationError{Reason: reason, Err: ErrMissingInput}
}

// Kind is the broad input category a rule enforces.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Rule decides whether a candidate is acceptable for one input slot.
type Rule struct {
	Kind   Kind
	reason string
	accept func(Candidate) bool
}

// CompareExtensions lists the audio containers the compare flow offers.
var CompareExtensions = []string{".wav", ".mp3", ".webm", ".ogg", ".m4a"}

var (
	imageTypePattern = regexp.MustCompile(`^image/(png|jpeg|jpg)$`)
	wavTypePattern   = regexp.MustCompile(`^audio/wav$`)
)

var (
	ImageRule = Rule{
		Kind:   KindImage,
		reason: "Image must be PNG or JPG format",
		accept: func(c Candidate) bool { return imageTypePattern.MatchString(c.MIMEType) },
	}
	EmbedAudioRule = Rule{
		Kind:   KindAudio,
		reason: "Audio must be WAV format",
		accept: func(c Candidate) bool { return wavTypePattern.MatchString(c.MIMEType) },
	}
	CompareAudioRule = Rule{
		Kind:   KindAudio,
		reason: "Audio must be one of: " + strings.Join(CompareExtensions, ", "),
		accept: func(c Candidate) bool {
			return slices.Contains(CompareExtensions, strings.ToLower(filepath.Ext(c.Name)))
		},
	}
)

// Validate accepts or rejects candidate against rule. It has no side effects.
func Validate(candidate Candidate, rule Rule) (File, error) {
	// Only a candidate carrying nothing at all counts as no selection.
	if candidate.Name == "" && candidate.MIMEType == "" && len(candidate.Data) == 0 {
		return File{}, &ValidationError{Reason: "No file selected", Err: ErrMissingInput}
	}
	if rule.accept == nil || !rule.accept(candidate) {
		return File{}, &ValidationError{Reason: rule.reason, Err: ErrRejected}
	}

	size := candidate.Size
	if size == 0 {
		size = uint64(len(candidate.Data))
	}
	data := candidate.Data
	if data == nil {
		data = []byte{}
	}
	return File{
		name:     candidate.Name,
		size:     size,
		mimeType: candidate.MIMEType,
		data:     append([]byte(nil), data...),
	}, nil
}
