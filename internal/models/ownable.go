package models

// Ownable is implemented by records that belong to a single owning user.
// Authorization is ownership-based: a caller may only touch records whose
// GetUserID matches their authenticated user id.
type Ownable interface {
	GetUserID() uint
}

var (
	_ Ownable = (*Client)(nil)
	_ Ownable = (*Invoice)(nil)
)
