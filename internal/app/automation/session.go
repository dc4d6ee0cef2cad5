package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wallybot/wally-agent/internal/domain"
	"github.com/wallybot/wally-agent/internal/observability"
)

// Android keycode for ENTER, used to submit the search.
const keycodeEnter = 66

const defaultPollInterval = 250 * time.Millisecond

// Session is the stateful driver over one device/app connection:
// DISCONNECTED -> CONNECTING -> CONNECTED -> APP_READY, with ERROR reachable
// from any state. One item's failure never tears the session down: a ten-item
// cart request should not be lost because one product name doesn't resolve.
//
// All operations are serialized on an internal mutex; the underlying UI
// driver is single-threaded per device and interleaved instructions would
// corrupt each other's in-flight search state.
type Session struct {
	device       domain.Device
	selectors    *Selectors
	appID        string
	waitTimeout  time.Duration
	pollInterval time.Duration

	mu      sync.Mutex
	state   domain.ConnectionState
	lastErr string
	// deviceUp tracks the underlying device connection separately from the
	// state enum: a session can land in ERROR after a successful connect
	// (say OpenApp failed) and the device claim must still be releasable.
	deviceUp bool
}

func newSession(device domain.Device, selectors *Selectors, appID string, waitTimeout time.Duration) *Session {
	if waitTimeout <= 0 {
		waitTimeout = 10 * time.Second
	}
	return &Session{
		device:       device,
		selectors:    selectors,
		appID:        appID,
		waitTimeout:  waitTimeout,
		pollInterval: defaultPollInterval,
		state:        domain.StateDisconnected,
	}
}

func (s *Session) State() domain.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the detail of the last transition into ERROR, if any.
func (s *Session) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case domain.StateConnecting, domain.StateConnected, domain.StateAppReady:
		return true
	}
	return false
}

// Connect is one attempt to establish the device connection. It is not
// retried internally; a failed session lands in ERROR and the caller decides
// whether to try a fresh one.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.StateConnected, domain.StateAppReady:
		return domain.ErrAlreadyConnected
	case domain.StateConnecting:
		return domain.ErrAlreadyConnected
	}

	s.state = domain.StateConnecting
	if err := s.device.Connect(ctx); err != nil {
		s.state = domain.StateError
		s.lastErr = err.Error()
		return fmt.Errorf("connecting device: %w", err)
	}

	s.state = domain.StateConnected
	s.deviceUp = true
	s.lastErr = ""
	return nil
}

// OpenApp brings the target app to the foreground. Requires CONNECTED;
// a no-op when the app is already ready.
func (s *Session) OpenApp(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.StateAppReady:
		return nil
	case domain.StateConnected:
	default:
		return domain.ErrNotConnected
	}

	if err := s.device.ActivateApp(ctx, s.appID); err != nil {
		s.state = domain.StateError
		s.lastErr = err.Error()
		return fmt.Errorf("opening app %s: %w", s.appID, err)
	}

	s.state = domain.StateAppReady
	return nil
}

// AddItem searches for the item and adds it to the cart with its quantity.
// Outcomes are terminal per item: results never rendering within the bounded
// wait is NOT_FOUND, anything unexpected is FAILED, and the session stays
// APP_READY either way.
func (s *Session) AddItem(ctx context.Context, item domain.ItemRequest) domain.ItemOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := observability.LoggerFromContext(ctx).With("item", item.Name, "quantity", item.Quantity)

	if s.state != domain.StateAppReady {
		return domain.ItemOutcome{Status: domain.ItemFailed, Detail: domain.ErrAppNotReady.Error()}
	}

	if err := s.searchItem(ctx, item.Name); err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			log.Info("no search results")
			return domain.ItemOutcome{Status: domain.ItemNotFound, Detail: "no search results for " + item.Name}
		}
		log.Error("search failed", "error", err)
		return domain.ItemOutcome{Status: domain.ItemFailed, Detail: err.Error()}
	}

	// Top result's add-to-cart, directly from the results list.
	addButton, err := s.waitFor(ctx, s.selectors.AddToCart)
	if err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			return domain.ItemOutcome{Status: domain.ItemNotFound, Detail: "no addable result for " + item.Name}
		}
		return domain.ItemOutcome{Status: domain.ItemFailed, Detail: err.Error()}
	}
	if err := addButton.Tap(ctx); err != nil {
		return domain.ItemOutcome{Status: domain.ItemFailed, Detail: "add to cart tap: " + err.Error()}
	}

	// The quantity stepper appears after the first add; tap plus for the rest.
	if item.Quantity > 1 {
		plus, err := s.waitFor(ctx, s.selectors.CartPlusButton)
		if err != nil {
			return domain.ItemOutcome{Status: domain.ItemFailed, Detail: "quantity stepper not found: " + err.Error()}
		}
		for i := 1; i < item.Quantity; i++ {
			if err := plus.Tap(ctx); err != nil {
				return domain.ItemOutcome{Status: domain.ItemFailed, Detail: fmt.Sprintf("raising quantity to %d: %v", item.Quantity, err)}
			}
		}
	}

	log.Info("item added to cart")
	return domain.ItemOutcome{Status: domain.ItemAdded, Detail: fmt.Sprintf("added %dx %s", item.Quantity, item.Name)}
}

// SearchItem runs only the search half of AddItem. Requires APP_READY.
// ErrElementNotFound means no results rendered within the bounded wait.
func (s *Session) SearchItem(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != domain.StateAppReady {
		return domain.ErrAppNotReady
	}
	return s.searchItem(ctx, name)
}

// searchItem taps the search bar, types the name, submits, and waits for the
// result list. Caller holds s.mu.
func (s *Session) searchItem(ctx context.Context, name string) error {
	searchBar, err := s.waitFor(ctx, s.selectors.SearchBar)
	if err != nil {
		if errors.Is(err, domain.ErrElementNotFound) {
			return fmt.Errorf("search bar never rendered: %w", errSearchUnavailable)
		}
		return fmt.Errorf("finding search bar: %w", err)
	}
	if err := searchBar.Tap(ctx); err != nil {
		return fmt.Errorf("focusing search bar: %w", err)
	}

	// Re-find after the tap; focusing can invalidate the element handle.
	searchBar, err = s.waitFor(ctx, s.selectors.SearchBar)
	if err != nil {
		return fmt.Errorf("re-finding search bar: %w", err)
	}
	if err := searchBar.Type(ctx, name); err != nil {
		return fmt.Errorf("typing search query: %w", err)
	}

	if err := s.device.PressKey(ctx, keycodeEnter); err != nil {
		return fmt.Errorf("submitting search: %w", err)
	}

	// Results not rendering within the wait is the NOT_FOUND signal.
	if _, err := s.waitFor(ctx, s.selectors.ProductList); err != nil {
		return err
	}
	return nil
}

// errSearchUnavailable distinguishes "the search bar itself is missing"
// (a session-level problem, FAILED) from "no results" (NOT_FOUND).
var errSearchUnavailable = errors.New("search facility unavailable")

// waitFor polls the selector's locator chain until an element renders or the
// bounded wait elapses. The timeout is what keeps a never-appearing element
// from hanging the whole command.
func (s *Session) waitFor(ctx context.Context, sel Selector) (domain.Element, error) {
	deadline := time.Now().Add(s.waitTimeout)
	for {
		el, err := s.findOnce(ctx, sel)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, domain.ErrElementNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, domain.ErrElementNotFound
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}

// findOnce tries each locator in the fallback chain once.
func (s *Session) findOnce(ctx context.Context, sel Selector) (domain.Element, error) {
	var lastErr error
	for _, loc := range sel.locators() {
		el, err := s.device.FindElement(ctx, loc.strategy, loc.value)
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, domain.ErrElementNotFound) {
			lastErr = err
			continue
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, domain.ErrElementNotFound
}

// Disconnect is valid from any state, ERROR included. It releases the device
// connection whenever one was established and demotes the session to
// DISCONNECTED, so a failed session never orphans the device claim.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasUp := s.deviceUp
	s.state = domain.StateDisconnected
	s.deviceUp = false

	if !wasUp {
		return nil
	}
	if err := s.device.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting device: %w", err)
	}
	return nil
}
