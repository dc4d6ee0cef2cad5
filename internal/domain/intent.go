package domain

// ItemRequest is one product the user asked for. Identity is positional:
// two entries with the same name are independent requests.
type ItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Intent is the structured form of a user command.
//
// Items is only meaningful for IntentAddItems. A reorder intent carries no
// items of its own; the orchestrator substitutes the most recent order's
// items during expansion.
type Intent struct {
	Type  IntentType
	Items []ItemRequest
}
