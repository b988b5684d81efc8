// Package document defines the Document value type produced by the loader
// and consumed by every downstream stage of the pipeline.
package document

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
)

// ChecksumAlgorithm selects the hash used to fingerprint document content.
type ChecksumAlgorithm string

const (
	ChecksumSHA256 ChecksumAlgorithm = "sha-256"
	ChecksumMD5    ChecksumAlgorithm = "md5"
)

// Document is an immutable value: every pipeline stage that derives new
// fields returns a new Document rather than mutating one in place (spec
// Design Note: "mutable metadata maps inside documents").
type Document struct {
	Content string
	Source  string

	Title       string
	Date        string
	Categories  []string
	Description string
	CoverImage  string
	CoverVideo  string
	ReadingTime string
	Published   bool

	URL           string
	PostSlug      string
	ContentLength int

	ContentChecksum string
	LastModified    int64
}

// WithChecksum returns a copy of doc with ContentChecksum recomputed from
// Content using algo.
func (doc Document) WithChecksum(algo ChecksumAlgorithm) Document {
	doc.ContentChecksum = Checksum(doc.Content, algo)
	return doc
}

// Checksum computes the hex digest of content using algo.
func Checksum(content string, algo ChecksumAlgorithm) string {
	switch algo {
	case ChecksumMD5:
		sum := md5.Sum([]byte(content))
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256([]byte(content))
		return hex.EncodeToString(sum[:])
	}
}
