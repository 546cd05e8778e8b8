package protocol

// Root is a client-declared workspace root. The set is replaced as a whole,
// never patched incrementally; a change is announced with
// notifications/roots/list_changed and re-fetched with roots/list.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// ListRootsParams is the (empty) payload of a roots/list request
type ListRootsParams struct{}

// ListRootsResult carries the client's full current root set
type ListRootsResult struct {
	Roots []Root `json:"roots"`
}
