package vector

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/strugglingman/rag-chatbot/internal/domain/chunk"
)

// Hash field names for stored chunks.
const (
	fieldText       = "text"
	fieldSource     = "source"
	fieldPage       = "page"
	fieldExt        = "ext"
	fieldTags       = "tags"
	fieldDeptID     = "dept_id"
	fieldUserID     = "user_id"
	fieldShared     = "shared"
	fieldFileID     = "file_id"
	fieldUploadAt   = "upload_at"
	fieldUploadedTS = "uploaded_ts"
	fieldVector     = "vector"
)

// chunkReturnFields are the hash fields fetched on reads; the stored vector
// stays server-side.
var chunkReturnFields = []string{
	fieldText, fieldSource, fieldPage, fieldExt, fieldTags,
	fieldDeptID, fieldUserID, fieldShared, fieldFileID,
	fieldUploadAt, fieldUploadedTS,
}

func fieldsFromChunk(c *chunk.Chunk, vec []float32) map[string]string {
	return map[string]string{
		fieldText:       c.Text(),
		fieldSource:     c.Source(),
		fieldPage:       strconv.Itoa(c.Page()),
		fieldExt:        c.Ext(),
		fieldTags:       c.Tags(),
		fieldDeptID:     c.DeptID(),
		fieldUserID:     c.UserID(),
		fieldShared:     strconv.FormatBool(c.Shared()),
		fieldFileID:     c.FileID(),
		fieldUploadAt:   c.UploadAt(),
		fieldUploadedTS: strconv.FormatInt(c.UploadedTS(), 10),
		fieldVector:     vectorToBytes(vec),
	}
}

func chunkFromFields(id string, fields map[string]string) chunk.Chunk {
	page, _ := strconv.Atoi(fields[fieldPage])
	shared, _ := strconv.ParseBool(fields[fieldShared])
	uploadedTS, _ := strconv.ParseInt(fields[fieldUploadedTS], 10, 64)

	meta := chunk.Meta{
		Source:     fields[fieldSource],
		Page:       page,
		Ext:        fields[fieldExt],
		Tags:       fields[fieldTags],
		DeptID:     fields[fieldDeptID],
		UserID:     fields[fieldUserID],
		Shared:     shared,
		FileID:     fields[fieldFileID],
		UploadAt:   fields[fieldUploadAt],
		UploadedTS: uploadedTS,
	}
	return chunk.Reconstruct(id, meta, fields[fieldText])
}

// vectorToBytes serializes []float32 to the binary layout FT.SEARCH expects.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
