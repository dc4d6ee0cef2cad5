package domain

// ItemStatus is the terminal outcome for one attempted item.
type ItemStatus string

const (
	ItemAdded    ItemStatus = "added"
	ItemNotFound ItemStatus = "not_found"
	ItemFailed   ItemStatus = "failed"
)

// ItemOutcome describes what happened to a single item during automation.
type ItemOutcome struct {
	Status ItemStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// AttemptedItem pairs an item with its outcome, in original command order.
type AttemptedItem struct {
	Item    ItemRequest `json:"item"`
	Outcome ItemOutcome `json:"outcome"`
}

// OverallStatus summarizes a whole command execution.
type OverallStatus string

const (
	OverallSuccess OverallStatus = "success"
	OverallPartial OverallStatus = "partial"
	OverallFailed  OverallStatus = "failed"
)

// ExecutionReport is the single result every command yields. It is produced
// fresh per command and never persisted unless the caller explicitly saves
// the cart as an Order.
type ExecutionReport struct {
	Command       string          `json:"command"`
	Transcription string          `json:"transcription,omitempty"`
	Intent        IntentType      `json:"intent"`
	Items         []AttemptedItem `json:"items,omitempty"`
	Orders        []*Order        `json:"orders,omitempty"` // list_items payload
	Overall       OverallStatus   `json:"overall"`
	Detail        string          `json:"detail,omitempty"`
}
