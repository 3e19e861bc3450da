package pdf

import (
	"os"

	"github.com/wudi/redactkit/document"
)

// Source opens PDF files as editable documents.
type Source struct{}

// NewSource returns a document.Source backed by this package.
func NewSource() Source { return Source{} }

func (Source) Open(path string) (document.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &document.OpenError{Path: path, Err: err}
	}
	f, err := OpenBytes(data)
	if err != nil {
		return nil, &document.OpenError{Path: path, Err: err}
	}
	return f, nil
}

func (Source) OpenBytes(data []byte) (document.Document, error) {
	f, err := OpenBytes(data)
	if err != nil {
		return nil, &document.OpenError{Err: err}
	}
	return f, nil
}
