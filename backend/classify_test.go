package backend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSniffClassifierIgnoresExtension(t *testing.T) {
	cl := SniffClassifier{}

	// PNG magic in a file claiming to be text.
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0}
	if got := cl.Classify(png); got != "image/png" {
		t.Errorf("png content classified as %q", got)
	}

	if got := cl.Classify([]byte("plain words, nothing more")); got != "text/plain" {
		t.Errorf("text content classified as %q", got)
	}
}

func TestClassifyFileReadsLeadingBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.txt")
	content := append([]byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, make([]byte, 2048)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	mime, err := ClassifyFile(SniffClassifier{}, path)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("classified as %q despite the .txt name", mime)
	}
}

func TestClassifyEmptyContent(t *testing.T) {
	if got := (SniffClassifier{}).Classify(nil); got != "text/plain" {
		t.Errorf("empty content classified as %q", got)
	}
}
