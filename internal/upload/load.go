package upload

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// declaredTypes mirrors what desktop file pickers report for the formats the
// service understands; platform MIME tables disagree on several of them.
var declaredTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// Load reads a local file into a Candidate, declaring its MIME type from the
// extension. Content is never sniffed.
func Load(path string) (Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Candidate{}, fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	return Candidate{
		Name:     name,
		MIMEType: DeclaredType(name),
		Size:     uint64(len(data)),
		Data:     data,
	}, nil
}

// DeclaredType returns the MIME type a picker would attach to name.
func DeclaredType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if declared, ok := declaredTypes[ext]; ok {
		return declared
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
