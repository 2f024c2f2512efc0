// Package upload validates user-selected files before they can be attached to
// an operation request.
package upload

import (
	"bytes"
	"io"
)

// Candidate is a raw file handle as picked by the user, before validation.
type Candidate struct {
	Name     string
	MIMEType string
	Size     uint64
	Data     []byte
}

// File is an accepted input. Its contents cannot change after validation.
type File struct {
	name     string
	size     uint64
	mimeType string
	data     []byte
}

// NewFile builds an accepted file directly, for inputs produced in-process
// such as a finished microphone recording.
func NewFile(name string, mimeType string, data []byte) File {
	return File{
		name:     name,
		size:     uint64(len(data)),
		mimeType: mimeType,
		data:     bytes.Clone(data),
	}
}

func (f File) Name() string     { return f.name }
func (f File) Size() uint64     { return f.size }
func (f File) MIMEType() string { return f.mimeType }

// Bytes returns a copy of the file contents.
func (f File) Bytes() []byte { return bytes.Clone(f.data) }

// Reader streams the file contents without copying them.
func (f File) Reader() io.Reader { return bytes.NewReader(f.data) }

// IsZero reports whether f was never set.
func (f File) IsZero() bool {
	return f.name == "" && f.mimeType == "" && f.data == nil
}

// Describe renders the selection line shown after picking a file.
func (f File) Describe() string {
	return f.name + " (" + FormatSize(f.size, 2) + ")"
}
