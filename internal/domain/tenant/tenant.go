package tenant

import "github.com/strugglingman/rag-chatbot/internal/domain/chunk"

// Filter is the visibility boundary for one request: the caller's
// department and user identity.
type Filter struct {
	deptID string
	userID string
}

// New creates a tenant filter.
func New(deptID, userID string) Filter {
	return Filter{deptID: deptID, userID: userID}
}

// DeptID returns the caller's department.
func (f Filter) DeptID() string { return f.deptID }

// UserID returns the caller's user identity.
func (f Filter) UserID() string { return f.userID }

// Visible reports whether the chunk may be returned for this caller:
// the department must match and the chunk must be shared or owned by
// the caller.
func (f Filter) Visible(c *chunk.Chunk) bool {
	if c.DeptID() != f.deptID {
		return false
	}
	return c.Shared() || c.UserID() == f.userID
}
