package models

// ItemStatus is the status of an item on a host todo list.
type ItemStatus string

const (
	ItemStatusNeedsAction ItemStatus = "needs_action"
	ItemStatusCompleted   ItemStatus = "completed"
)

// TodoItem is an item of the target list. It is owned by the host; this service only
// reads it and flips its status.
type TodoItem struct {
	UID         string     `json:"uid"`
	Summary     string     `json:"summary,omitempty"`
	Status      ItemStatus `json:"status"`
	Description string     `json:"description,omitempty"`
	Due         string     `json:"due,omitempty"`
}

// IsCompleted reports whether the item needs to be reset.
func (i TodoItem) IsCompleted() bool {
	return i.Status == ItemStatusCompleted
}
