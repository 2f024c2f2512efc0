package service

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type fields map[string]json.RawMessage

func decodeObject(body []byte) (fields, error) {
	var out fields
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("response body is null")
	}
	return out, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// text reads an optional scalar as a string; numbers keep their JSON form.
func (f fields) text(key string) string {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// artifact reads a mandatory base64 field; the first present key wins.
func (f fields) artifact(keys ...string) ([]byte, string, error) {
	for _, key := range keys {
		raw, ok := f[key]
		if !ok || isNull(raw) {
			continue
		}
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, key, fmt.Errorf("expected base64 string: %w", err)
		}
		if encoded == "" {
			continue
		}
		data, err := decodeBase64(encoded)
		if err != nil {
			return nil, key, err
		}
		return data, key, nil
	}
	return nil, keys[0], errors.New("missing")
}

func decodeBase64(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ";base64,"); strings.HasPrefix(encoded, "data:") && i >= 0 {
		encoded = encoded[i+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// score reads an optional 0..100 score. Booleans map to 100/0; anything else
// is treated as absent.
func (f fields) score(key string) *float64 {
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return nil
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return &number
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		if flag {
			number = 100
		}
		return &number
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if parsed, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
			return &parsed
		}
	}
	return nil
}

// table reads an optional name→number map, skipping non-numeric entries.
func (f fields) table(key string) map[string]float64 {
	out := map[string]float64{}
	raw, ok := f[key]
	if !ok || isNull(raw) {
		return out
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return out
	}
	for name, value := range entries {
		var number float64
		if err := json.Unmarshal(value, &number); err == nil {
			out[name] = number
		}
	}
	return out
}

func decodeEmbed(endpoint string, body []byte) (EmbedResult, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return EmbedResult{}, &MalformedResponseError{Endpoint: endpoint, Err: err}
	}
	image, field, err := obj.artifact("stego_image", "stego_image_base64")
	if err != nil {
		return EmbedResult{}, &MalformedResponseError{Endpoint: endpoint, Field: field, Err: err}
	}
	return EmbedResult{
		StegoImage: image,
		Message:    obj.text("message"),
		UniqueID:   obj.text("unique_id"),
	}, nil
}

func decodeExtract(endpoint string, body []byte) (ExtractResult, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return ExtractResult{}, &MalformedResponseError{Endpoint: endpoint, Err: err}
	}
	audio, field, err := obj.artifact("extracted_audio")
	if err != nil {
		return ExtractResult{}, &MalformedResponseError{Endpoint: endpoint, Field: field, Err: err}
	}
	return ExtractResult{
		ExtractedAudio:   audio,
		MatchResult:      obj.score("match_result"),
		OriginalFilename: obj.text("original_filename"),
	}, nil
}

// decodeCompare fills documented defaults for every missing field and only
// fails when the body is not an object or a verdict field has the wrong type.
func decodeCompare(endpoint string, body []byte) (CompareResult, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return CompareResult{}, &MalformedResponseError{Endpoint: endpoint, Err: err}
	}

	result := CompareResult{
		FeatureSimilarities: obj.table("feature_similarities"),
		FeatureDifferences:  obj.table("feature_differences"),
		FeatureThresholds:   obj.table("feature_thresholds"),
	}

	if raw, ok := obj["overall_similarity"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &result.OverallSimilarity); err != nil {
			return CompareResult{}, &MalformedResponseError{Endpoint: endpoint, Field: "overall_similarity", Err: err}
		}
	}
	if raw, ok := obj["is_same_speaker"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &result.IsSameSpeaker); err != nil {
			return CompareResult{}, &MalformedResponseError{Endpoint: endpoint, Field: "is_same_speaker", Err: err}
		}
	}
	if plot, _, err := obj.artifact("spectrum_plot"); err == nil {
		result.SpectrumPlot = plot
	}
	return result, nil
}

// decodeFailure builds a ServiceError from any error body. The message
// prefers "message", then "error", then the generic text.
func decodeFailure(status int, body []byte) *ServiceError {
	out := &ServiceError{Status: status, Message: GenericFailure}
	obj, err := decodeObject(body)
	if err != nil {
		return out
	}
	for _, key := range []string{"message", "error"} {
		if msg := strings.TrimSpace(obj.text(key)); msg != "" {
			out.Message = msg
			break
		}
	}
	out.Details = obj.text("details")
	return out
}
