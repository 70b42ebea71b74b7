package backend

import (
	"crypto/sha1"
	"encoding/base64"
	"io"
	"os"
)

// The vendor's upload integrity checksum: a SHA1 seeded with a fixed prefix,
// framed as [10, len, digest..., 16, 0] and base64 encoded. The trailing 0
// is the item type and is always 0 for file uploads.
var checksumSeed = []byte{13, 7, 2, 2, 15, 40, 75, 117, 13, 10, 19, 16, 29, 23, 3, 36}

// EmptyChecksum is the fixed checksum the backend expects for folders and
// other zero-content items: an empty digest framed with item type 2.
const EmptyChecksum = "CgAQAg"

func Checksum(r io.Reader) (string, error) {
	h := sha1.New()
	h.Write(checksumSeed)
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	digest := h.Sum(nil)

	framed := make([]byte, 0, len(digest)+4)
	framed = append(framed, 10, byte(len(digest)))
	framed = append(framed, digest...)
	framed = append(framed, 16, 0)

	return base64.StdEncoding.EncodeToString(framed), nil
}

func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Checksum(f)
}
