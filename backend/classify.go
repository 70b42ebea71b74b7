package backend

import (
	"io"
	"net/http"
	"os"
	"strings"
)

// Classifier determines a MIME type from content, not filename. The storage
// side rejects uploads without a content type, and extensions lie.
type Classifier interface {
	Classify(data []byte) string
}

// SniffClassifier inspects the leading bytes of the content.
type SniffClassifier struct{}

func (SniffClassifier) Classify(data []byte) string {
	if len(data) > 512 {
		data = data[:512]
	}
	mime := http.DetectContentType(data)
	// DetectContentType appends charset parameters; the upload auth wants
	// the bare type.
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

// ClassifyFile reads just enough of the file at path for cl to sniff.
func ClassifyFile(cl Classifier, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", err
	}
	return cl.Classify(buf[:n]), nil
}
