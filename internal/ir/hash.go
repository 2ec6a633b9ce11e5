package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Domain prefixes for file content digests.
// Version suffix enables future algorithm migration.
const (
	DomainDataFile   = "deltasink/data-file/v1"
	DomainDeleteFile = "deltasink/delete-file/v1"
)

// Digest accumulates a domain-separated SHA-256 over a file's records.
// Format: SHA256(domain + 0x00 + record + 0x00 + record + 0x00 ...)
// The null byte separator prevents record boundary ambiguity.
type Digest struct {
	h hash.Hash
}

// NewDigest starts a digest for the given domain.
func NewDigest(domain string) *Digest {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	return &Digest{h: h}
}

// Add appends one canonical record to the digest.
func (d *Digest) Add(record []byte) {
	d.h.Write(record)
	d.h.Write([]byte{0x00})
}

// Sum returns the hex digest. Add may still be called afterwards.
func (d *Digest) Sum() string {
	return hex.EncodeToString(d.h.Sum(nil))
}

// DigestRecords computes the digest of a complete record sequence.
func DigestRecords(domain string, records ...[]byte) string {
	d := NewDigest(domain)
	for _, r := range records {
		d.Add(r)
	}
	return d.Sum()
}
