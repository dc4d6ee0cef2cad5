package domain

import "context"

// IntentModel is the remote structured-intent call boundary. Implementations
// may fail or return garbage; the resolver absorbs both with its fallback.
type IntentModel interface {
	ClassifyIntent(ctx context.Context, command string) (Intent, error)
}

// Transcript is the result of one speech-to-text call.
type Transcript struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber converts an audio payload to plain text. Failures come back as
// *TranscriptionError.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcript, error)
}

// OrderStore defines persistence for completed orders. Records are
// append-only: never mutated or deleted through this interface.
type OrderStore interface {
	// Save appends a new immutable order. ErrEmptyOrder if items is empty.
	Save(ctx context.Context, items []ItemRequest, total *float64) (*Order, error)
	// List returns orders most-recent-first, ordered by CreatedAt then ID so
	// ties break deterministically.
	List(ctx context.Context, limit, offset int) ([]*Order, error)
	// Get returns ErrOrderNotFound when the id is unknown.
	Get(ctx context.Context, id OrderID) (*Order, error)
	// MostRecent returns (nil, nil) when history is empty. That is the
	// normal empty-history case reorder expansion consumes, not an error.
	MostRecent(ctx context.Context) (*Order, error)
}

// LocatorStrategy selects how a Device resolves a locator value to an element.
// Values follow the Appium/UiAutomator2 wire names.
type LocatorStrategy string

const (
	ByResourceID  LocatorStrategy = "id"
	ByXPath       LocatorStrategy = "xpath"
	ByUIAutomator LocatorStrategy = "-android uiautomator"
)

// Element is one resolved UI element on the device.
type Element interface {
	Tap(ctx context.Context) error
	Type(ctx context.Context, text string) error
}

// Device is the connection handle to the external device/app automation
// layer. One Device value supports repeated connect/disconnect cycles.
type Device interface {
	Connect(ctx context.Context) error
	ActivateApp(ctx context.Context, appID string) error
	// FindElement returns ErrElementNotFound when the element is absent right
	// now; bounded waiting is the session's job.
	FindElement(ctx context.Context, strategy LocatorStrategy, value string) (Element, error)
	PressKey(ctx context.Context, keycode int) error
	Disconnect(ctx context.Context) error
}

// AutomationDriver executes shopping actions against an app-ready session.
type AutomationDriver interface {
	AddItem(ctx context.Context, item ItemRequest) ItemOutcome
	SearchItem(ctx context.Context, name string) error
	State() ConnectionState
}

// SessionProvider hands out the exclusive app-ready driver for the single
// physical device, connecting and opening the app as needed.
type SessionProvider interface {
	Ensure(ctx context.Context) (AutomationDriver, error)
}
