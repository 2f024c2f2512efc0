package operation

import (
	"github.com/rbright/voxseal/internal/service"
	"github.com/rbright/voxseal/internal/upload"
)

type Kind string

const (
	KindEmbed   Kind = "embed"
	KindExtract Kind = "extract"
	KindCompare Kind = "compare"
)

// Request is assembled from validated inputs immediately before submission.
type Request interface {
	Kind() Kind
}

type EmbedRequest struct {
	Image upload.File
	Audio upload.File
}

type ExtractRequest struct {
	Image upload.File
}

type CompareRequest struct {
	AudioA upload.File
	AudioB upload.File
}

func (EmbedRequest) Kind() Kind   { return KindEmbed }
func (ExtractRequest) Kind() Kind { return KindExtract }
func (CompareRequest) Kind() Kind { return KindCompare }

// Result is the settled outcome of one request; exactly one field matching
// Kind is set.
type Result struct {
	Kind    Kind
	Embed   *service.EmbedResult
	Extract *service.ExtractResult
	Compare *service.CompareResult
}
