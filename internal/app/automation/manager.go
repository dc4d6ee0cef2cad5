package automation

import (
	"context"
	"sync"
	"time"

	"github.com/wallybot/wally-agent/internal/domain"
	"github.com/wallybot/wally-agent/internal/observability"
)

// Manager owns the single physical device and hands out at most one live
// session for it. Exclusivity is enforced by refusing a second claim while
// one is active, not by queuing: the caller must disconnect or wait.
type Manager struct {
	device      domain.Device
	selectors   *Selectors
	appID       string
	waitTimeout time.Duration

	mu      sync.Mutex
	current *Session
}

func NewManager(device domain.Device, selectors *Selectors, appID string, waitTimeout time.Duration) *Manager {
	return &Manager{
		device:      device,
		selectors:   selectors,
		appID:       appID,
		waitTimeout: waitTimeout,
	}
}

// Acquire claims the device with a fresh, still-disconnected session.
// ErrAlreadyConnected while another session is live.
func (m *Manager) Acquire() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.active() {
		return nil, domain.ErrAlreadyConnected
	}

	m.current = newSession(m.device, m.selectors, m.appID, m.waitTimeout)
	return m.current, nil
}

// Current returns the session holding the device claim, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Ensure returns an APP_READY driver, reusing the live session when possible
// and otherwise running connect + openApp on a fresh claim. A failure here
// happens before any item is attempted and aborts the whole command.
func (m *Manager) Ensure(ctx context.Context) (domain.AutomationDriver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := observability.LoggerFromContext(ctx)

	sess := m.current
	if sess != nil && sess.State() == domain.StateAppReady {
		return sess, nil
	}

	if sess == nil || !sess.active() {
		sess = newSession(m.device, m.selectors, m.appID, m.waitTimeout)
		m.current = sess
	}

	if sess.State() != domain.StateConnected {
		log.Info("connecting automation session")
		if err := sess.Connect(ctx); err != nil {
			return nil, err
		}
	}
	if err := sess.OpenApp(ctx); err != nil {
		return nil, err
	}
	return sess, nil
}
