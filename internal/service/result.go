package service

// EmbedResult carries the stego image produced by /embed.
type EmbedResult struct {
	StegoImage []byte
	Message    string
	UniqueID   string
}

// ExtractResult carries the hidden audio recovered by /extract. MatchResult
// is nil when the service reported no match score.
type ExtractResult struct {
	ExtractedAudio   []byte
	MatchResult      *float64
	OriginalFilename string
}

// CompareResult is the speaker-similarity analysis from /compare_audio.
type CompareResult struct {
	OverallSimilarity   float64
	IsSameSpeaker       bool
	FeatureSimilarities map[string]float64
	FeatureDifferences  map[string]float64
	FeatureThresholds   map[string]float64
	SpectrumPlot        []byte
}

// ActiveFeatures is the breakdown that explains the verdict: similarities
// for a match, differences otherwise.
func (r CompareResult) ActiveFeatures() map[string]float64 {
	if r.IsSameSpeaker {
		return r.FeatureSimilarities
	}
	return r.FeatureDifferences
}
