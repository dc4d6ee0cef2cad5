package domain

// OrderID identifies a persisted order. Opaque outside the store.
type OrderID string

// IntentType is the closed set of command classifications the agent acts on.
type IntentType string

const (
	IntentAddItems  IntentType = "add_items"
	IntentReorder   IntentType = "reorder"
	IntentListItems IntentType = "list_items"
	IntentUnknown   IntentType = "unknown"
)

// ConnectionState tracks where an automation session is in its lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateAppReady     ConnectionState = "app_ready"
	StateError        ConnectionState = "error"
)
