// Package present turns settled operation results into display models,
// renders them for the terminal, and runs the outcome modal.
package present

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"

	"github.com/rbright/voxseal/internal/operation"
	"github.com/rbright/voxseal/internal/service"
	"github.com/rbright/voxseal/internal/upload"
)

const (
	StegoImageName     = "stego_image.png"
	ExtractedAudioName = "extracted_audio.wav"
	SpectrumPlotName   = "spectrum_plot.png"

	EmbedModalText = "Audio embedded successfully!"
	NoMatchText    = "No Match"
)

// Artifact is a downloadable file decoded from the service response.
type Artifact struct {
	Name     string `json:"name" yaml:"name"`
	MIMEType string `json:"mime_type" yaml:"mime_type"`
	Size     string `json:"size" yaml:"size"`
	Path     string `json:"path,omitempty" yaml:"path,omitempty"`
	Data     []byte `json:"-" yaml:"-"`
}

func newArtifact(name string, mimeType string, data []byte) Artifact {
	return Artifact{
		Name:     name,
		MIMEType: mimeType,
		Size:     upload.FormatSize(uint64(len(data)), 2),
		Data:     data,
	}
}

// DataURL inlines the artifact for previews that accept data URLs.
func (a Artifact) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// View is the display model of one settled result.
type View interface {
	Kind() operation.Kind
	Artifacts() []*Artifact
}

type EmbedView struct {
	Message    string   `json:"message,omitempty" yaml:"message,omitempty"`
	UniqueID   string   `json:"unique_id,omitempty" yaml:"unique_id,omitempty"`
	StegoImage Artifact `json:"stego_image" yaml:"stego_image"`
}

func (*EmbedView) Kind() operation.Kind { return operation.KindEmbed }
func (v *EmbedView) Artifacts() []*Artifact { return []*Artifact{&v.StegoImage} }

// Match is the extract flow's speaker match verdict.
type Match struct {
	Score float64 `json:"score" yaml:"score"`
	Found bool    `json:"found" yaml:"found"`
	Text  string  `json:"text" yaml:"text"`
}

type ExtractView struct {
	Audio            Artifact `json:"extracted_audio" yaml:"extracted_audio"`
	OriginalFilename string   `json:"original_filename,omitempty" yaml:"original_filename,omitempty"`
	Match            *Match   `json:"match,omitempty" yaml:"match,omitempty"`
}

func (*ExtractView) Kind() operation.Kind { return operation.KindExtract }
func (v *ExtractView) Artifacts() []*Artifact { return []*Artifact{&v.Audio} }

// Status grades one feature row.
type Status string

const (
	StatusGood    Status = "good"
	StatusFair    Status = "fair"
	StatusPoor    Status = "poor"
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusUnknown Status = "unknown"
)

type FeatureRow struct {
	Name      string   `json:"name" yaml:"name"`
	Label     string   `json:"label" yaml:"label"`
	Value     float64  `json:"value" yaml:"value"`
	Display   string   `json:"display" yaml:"display"`
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Limit     string   `json:"limit,omitempty" yaml:"limit,omitempty"`
	Status    Status   `json:"status" yaml:"status"`
}

type CompareView struct {
	Similarity  string       `json:"similarity" yaml:"similarity"`
	Score       float64      `json:"score" yaml:"score"`
	SameSpeaker bool         `json:"same_speaker" yaml:"same_speaker"`
	Verdict     string       `json:"verdict" yaml:"verdict"`
	Breakdown   string       `json:"breakdown" yaml:"breakdown"`
	Features    []FeatureRow `json:"features" yaml:"features"`
	Spectrum    *Artifact    `json:"spectrum_plot,omitempty" yaml:"spectrum_plot,omitempty"`
}

func (*CompareView) Kind() operation.Kind { return operation.KindCompare }

func (v *CompareView) Artifacts() []*Artifact {
	if v.Spectrum == nil {
		return nil
	}
	return []*Artifact{v.Spectrum}
}

// Build maps a result to its view.
func Build(result operation.Result) (View, error) {
	switch {
	case result.Kind == operation.KindEmbed && result.Embed != nil:
		return Embed(*result.Embed), nil
	case result.Kind == operation.KindExtract && result.Extract != nil:
		return Extract(*result.Extract), nil
	case result.Kind == operation.KindCompare && result.Compare != nil:
		return Compare(*result.Compare), nil
	default:
		return nil, fmt.Errorf("no %s result to present", result.Kind)
	}
}

func Embed(result service.EmbedResult) *EmbedView {
	return &EmbedView{
		Message:    result.Message,
		UniqueID:   result.UniqueID,
		StegoImage: newArtifact(StegoImageName, "image/png", result.StegoImage),
	}
}

func Extract(result service.ExtractResult) *ExtractView {
	view := &ExtractView{
		Audio:            newArtifact(ExtractedAudioName, "audio/wav", result.ExtractedAudio),
		OriginalFilename: result.OriginalFilename,
	}
	if result.MatchResult != nil {
		view.Match = matchOf(*result.MatchResult)
	}
	return view
}

func matchOf(score float64) *Match {
	m := &Match{Score: score, Found: score != 0, Text: NoMatchText}
	if m.Found {
		m.Text = "Match Found (" + Percent(score) + ")"
	}
	return m
}

// Compare picks the breakdown that explains the verdict and grades each row.
func Compare(result service.CompareResult) *CompareView {
	view := &CompareView{
		Similarity:  Percent(result.OverallSimilarity),
		Score:       result.OverallSimilarity,
		SameSpeaker: result.IsSameSpeaker,
		Verdict:     NoMatchText,
		Breakdown:   "Feature Differences",
	}
	if result.IsSameSpeaker {
		view.Verdict = "Match"
		view.Breakdown = "Feature Similarities"
	}

	active := result.ActiveFeatures()
	names := make([]string, 0, len(active))
	for name := range active {
		names = append(names, name)
	}
	slices.Sort(names)

	view.Features = make([]FeatureRow, 0, len(names))
	for _, name := range names {
		value := active[name]
		row := FeatureRow{Name: name, Label: FeatureLabel(name), Value: value}
		if result.IsSameSpeaker {
			row.Display = Percent(value)
			row.Status = similarityBand(value)
		} else {
			row.Display = Magnitude(value)
			row.Status = StatusUnknown
			if threshold, ok := result.FeatureThresholds[name]; ok {
				row.Threshold = &threshold
				row.Limit = Magnitude(threshold)
				row.Status = StatusFail
				if value <= threshold {
					row.Status = StatusPass
				}
			}
		}
		view.Features = append(view.Features, row)
	}

	if result.SpectrumPlot != nil {
		plot := newArtifact(SpectrumPlotName, "image/png", result.SpectrumPlot)
		view.Spectrum = &plot
	}
	return view
}

func similarityBand(value float64) Status {
	switch {
	case value >= 80:
		return StatusGood
	case value >= 60:
		return StatusFair
	default:
		return StatusPoor
	}
}

// ModalText is the acknowledgment prompt for result, if it needs one.
func ModalText(result operation.Result) (string, bool) {
	switch result.Kind {
	case operation.KindEmbed:
		return EmbedModalText, result.Embed != nil
	case operation.KindExtract:
		if result.Extract == nil || result.Extract.MatchResult == nil {
			return "", false
		}
		return matchOf(*result.Extract.MatchResult).Text, true
	default:
		return "", false
	}
}

// Percent formats a 0..100 score with two decimals.
func Percent(v float64) string { return fmt.Sprintf("%.2f%%", v) }

// Magnitude formats a raw feature difference with four decimals.
func Magnitude(v float64) string { return fmt.Sprintf("%.4f", v) }

// FeatureLabel turns "spectral_centroid" into "SPECTRAL CENTROID".
func FeatureLabel(name string) string {
	return strings.ToUpper(strings.ReplaceAll(name, "_", " "))
}
