// Package checksum decides whether an object needs to be transferred by
// comparing content fingerprints (MD5 hex, ETag-class).
package checksum

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// Decision is the outcome of comparing source and destination fingerprints.
type Decision int

const (
	// Transfer means the destination needs (re-)uploading.
	Transfer Decision = iota
	// Skip means the destination already holds identical content.
	Skip
)

func (d Decision) String() string {
	if d == Skip {
		return "skip"
	}
	return "transfer"
}

// Decide compares a source fingerprint against the destination's. Skip is
// returned iff both fingerprints are present and equal. An empty string
// stands for "absent or could not be computed" and always yields Transfer:
// an object is never silently dropped because a fingerprint was unavailable.
// Zero-byte content has a well-defined fingerprint and compares normally.
func Decide(sourceFingerprint, destFingerprint string) Decision {
	src := normalize(sourceFingerprint)
	dst := normalize(destFingerprint)
	if src == "" || dst == "" {
		return Transfer
	}
	if src == dst {
		return Skip
	}
	return Transfer
}

// normalize strips the quotes S3-style ETags carry on the wire.
func normalize(fp string) string {
	return strings.Trim(strings.TrimSpace(fp), `"`)
}

// Sum computes the MD5 hex fingerprint of everything readable from r.
func Sum(r io.Reader) (string, error) {
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File computes the MD5 hex fingerprint of the file at path.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return Sum(f)
}
