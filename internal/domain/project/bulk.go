package project

import "fmt"

// BulkAction selects the mutation a bulk request applies to every id.
type BulkAction string

const (
	BulkUpdateStatus BulkAction = "update_status"
	BulkAddTag       BulkAction = "add_tag"
	BulkRemoveTag    BulkAction = "remove_tag"
)

// BulkRequest is a multi-entity mutation carrying the version each entity
// had when the caller selected it. The server checks every id independently
// against its expected version.
type BulkRequest struct {
	Action           BulkAction      `json:"action"`
	IDs              []int64         `json:"ids"`
	ExpectedVersions map[int64]int64 `json:"versions"`
	NewStatus        Status          `json:"new_status,omitempty"`
	Tag              string          `json:"tag,omitempty"`
}

// Validate checks the action payload before submission.
func (r BulkRequest) Validate() error {
	if len(r.IDs) == 0 {
		return fmt.Errorf("%w: no ids selected", ErrInvalidInput)
	}
	switch r.Action {
	case BulkUpdateStatus:
		if r.NewStatus == "" {
			return fmt.Errorf("%w: new_status is required", ErrInvalidInput)
		}
	case BulkAddTag, BulkRemoveTag:
		if r.Tag == "" {
			return fmt.Errorf("%w: tag is required", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported bulk action %q", ErrInvalidInput, r.Action)
	}
	for _, id := range r.IDs {
		if _, ok := r.ExpectedVersions[id]; !ok {
			return fmt.Errorf("%w: missing expected version for id %d", ErrInvalidInput, id)
		}
	}
	return nil
}

// BulkConflict reports one id whose live version no longer matched the
// version the caller last observed. Conflicts are data, not errors.
type BulkConflict struct {
	ID       int64 `json:"id"`
	Expected int64 `json:"expected"`
	Found    int64 `json:"found"`
}

// BulkResponse is the per-id outcome of a bulk request: every id ends up
// either counted in UpdatedCount or listed in Conflicts, never both.
type BulkResponse struct {
	UpdatedCount int            `json:"updated_count"`
	Conflicts    []BulkConflict `json:"conflicts,omitempty"`
}
