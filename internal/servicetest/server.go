// Package servicetest runs an in-process stand-in for the remote service so
// client and CLI tests can exercise real HTTP round trips.
package servicetest

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

const (
	EmbedPath   = "/embed"
	ExtractPath = "/extract"
	ComparePath = "/compare_audio"
)

var (
	// StegoPNG and ExtractedWAV are the payloads the default handlers return.
	StegoPNG     = []byte("\x89PNG\r\n\x1a\nstego")
	ExtractedWAV = []byte("RIFF\x00\x00\x00\x00WAVEhidden")
)

// Upload is one multipart file part as received.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Call records one request.
type Call struct {
	Path      string
	RequestID string
	UserAgent string
	Files     map[string]Upload
}

type Server struct {
	*httptest.Server

	mu    sync.Mutex
	calls []Call

	handlers map[string]http.HandlerFunc
}

type Option func(*Server)

// WithHandler replaces the response for path.
func WithHandler(path string, h http.HandlerFunc) Option {
	return func(s *Server) { s.handlers[path] = h }
}

func New(opts ...Option) *Server {
	s := &Server{
		handlers: map[string]http.HandlerFunc{
			EmbedPath: JSON(http.StatusOK, map[string]any{
				"message":            "Audio embedded successfully",
				"stego_image_base64": base64.StdEncoding.EncodeToString(StegoPNG),
				"unique_id":          "0110",
			}),
			ExtractPath: JSON(http.StatusOK, map[string]any{
				"extracted_audio":   base64.StdEncoding.EncodeToString(ExtractedWAV),
				"match_result":      92.5,
				"original_filename": "voice.wav",
			}),
			ComparePath: JSON(http.StatusOK, map[string]any{
				"overall_similarity":  41.2,
				"is_same_speaker":     false,
				"feature_differences": map[string]float64{"pitch": 0.62},
				"feature_thresholds":  map[string]float64{"pitch": 0.3},
			}),
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	router := chi.NewRouter()
	router.Use(s.record)
	for _, path := range []string{EmbedPath, ExtractPath, ComparePath} {
		router.Post(path, s.dispatch(path))
	}
	s.Server = httptest.NewServer(router)
	return s
}

func (s *Server) dispatch(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		h := s.handlers[path]
		s.mu.Unlock()
		h(w, r)
	}
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := Call{
			Path:      r.URL.Path,
			RequestID: r.Header.Get("X-Request-ID"),
			UserAgent: r.UserAgent(),
			Files:     map[string]Upload{},
		}
		if err := r.ParseMultipartForm(32 << 20); err == nil {
			for field, headers := range r.MultipartForm.File {
				if len(headers) == 0 {
					continue
				}
				f, err := headers[0].Open()
				if err != nil {
					continue
				}
				data, _ := io.ReadAll(f)
				_ = f.Close()
				call.Files[field] = Upload{
					Filename:    headers[0].Filename,
					ContentType: headers[0].Header.Get("Content-Type"),
					Data:        data,
				}
			}
		}

		s.mu.Lock()
		s.calls = append(s.calls, call)
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// Calls returns the recorded requests for path.
func (s *Server) Calls(path string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) Count(path string) int { return len(s.Calls(path)) }

// JSON responds with status and body encoded as JSON.
func JSON(status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

// Raw responds with status and a verbatim body.
func Raw(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// Block holds every request until release is closed, then delegates to next.
// entered receives one value per request that reached the handler.
func Block(release <-chan struct{}, entered chan<- struct{}, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		next(w, r)
	}
}

// Unreachable returns a base URL with nothing listening behind it.
func Unreachable() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
