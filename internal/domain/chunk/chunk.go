package chunk

import (
	"crypto/md5" //nolint:gosec // content addressing, not cryptography
	"encoding/hex"
	"fmt"
)

// Chunk is the smallest retrievable unit of document text.
type Chunk struct {
	id         string
	source     string
	page       int
	ext        string
	tags       string
	deptID     string
	userID     string
	shared     bool
	fileID     string
	uploadAt   string
	uploadedTS int64
	text       string
}

// Meta holds the chunk attributes that are not derived from content.
type Meta struct {
	Source     string
	Page       int
	Ext        string
	Tags       string
	DeptID     string
	UserID     string
	Shared     bool
	FileID     string
	UploadAt   string
	UploadedTS int64
}

// New creates a chunk and derives its identity from content and location.
func New(meta Meta, text string) Chunk {
	return Chunk{
		id:         DeriveID(meta.DeptID, meta.UserID, meta.Shared, meta.Source, meta.Page, text),
		source:     meta.Source,
		page:       meta.Page,
		ext:        meta.Ext,
		tags:       meta.Tags,
		deptID:     meta.DeptID,
		userID:     meta.UserID,
		shared:     meta.Shared,
		fileID:     meta.FileID,
		uploadAt:   meta.UploadAt,
		uploadedTS: meta.UploadedTS,
		text:       text,
	}
}

// Reconstruct rebuilds a chunk from stored fields without re-deriving the ID.
func Reconstruct(id string, meta Meta, text string) Chunk {
	c := New(meta, text)
	c.id = id
	return c
}

// DeriveID computes the deterministic chunk identity. The owner user ID is
// part of the seed only for user-owned chunks, so a shared chunk keeps the
// same identity no matter who uploaded it.
func DeriveID(deptID, userID string, shared bool, source string, page int, text string) string {
	var seed string
	if shared {
		seed = fmt.Sprintf("%s|%s|p%d|%s", deptID, source, page, text)
	} else {
		seed = fmt.Sprintf("%s|%s|%s|p%d|%s", deptID, userID, source, page, text)
	}
	sum := md5.Sum([]byte(seed)) //nolint:gosec // content addressing, not cryptography
	return hex.EncodeToString(sum[:])
}

// ID returns the chunk identity.
func (c *Chunk) ID() string { return c.id }

// Source returns the source document filename.
func (c *Chunk) Source() string { return c.source }

// Page returns the page number (0 for non-paginated sources).
func (c *Chunk) Page() int { return c.page }

// Ext returns the source file extension.
func (c *Chunk) Ext() string { return c.ext }

// Tags returns the comma-joined lowercase tag set.
func (c *Chunk) Tags() string { return c.tags }

// DeptID returns the owning department.
func (c *Chunk) DeptID() string { return c.deptID }

// UserID returns the owning user.
func (c *Chunk) UserID() string { return c.userID }

// Shared reports whether the chunk is visible to all users in the department.
func (c *Chunk) Shared() bool { return c.shared }

// FileID returns the source file identifier.
func (c *Chunk) FileID() string { return c.fileID }

// UploadAt returns the upload timestamp as recorded at ingestion.
func (c *Chunk) UploadAt() string { return c.uploadAt }

// UploadedTS returns the upload unix timestamp.
func (c *Chunk) UploadedTS() int64 { return c.uploadedTS }

// Text returns the raw chunk text.
func (c *Chunk) Text() string { return c.text }

// WithText returns a copy of the chunk with replaced text, keeping the
// original identity. Used when scrubbed text must flow downstream.
func (c *Chunk) WithText(text string) Chunk {
	out := *c
	out.text = text
	return out
}

// dedupPrefix is the text prefix length used for near-duplicate detection.
const dedupPrefix = 150

// DedupKey returns the stable source+prefix-of-text key used to drop
// duplicate snippets within one candidate set.
func (c *Chunk) DedupKey() string {
	text := c.text
	if len(text) > dedupPrefix {
		text = text[:dedupPrefix]
	}
	return c.source + text
}
