package db

// TagMatch matches a TAG field against one of the given exact values.
type TagMatch struct {
	Key    string
	Values []string
}

// TagFilter is a conjunction of tag conditions applied as an FT.SEARCH
// pre-filter. All Must conditions apply; Should conditions form a single
// OR group; a match requires every Must plus at least one Should (when
// Should is non-empty).
type TagFilter struct {
	Must   []TagMatch
	Should []TagMatch
}

// IsEmpty reports whether the filter constrains anything.
func (f TagFilter) IsEmpty() bool {
	return len(f.Must) == 0 && len(f.Should) == 0
}

// KNNQuery is the input for vector similarity search. Scores in the result
// are the raw distances reported by the index (cosine distance for the
// chunk index), not similarities.
type KNNQuery struct {
	IndexName    string
	Filters      TagFilter
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for paginated filtered listing over an FT index.
type ListQuery struct {
	IndexName    string
	Filters      TagFilter
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
