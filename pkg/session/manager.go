// Package session runs one cart actor per ordering session.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/tablepos/pkg/cart"
	"github.com/example/tablepos/pkg/config"
	"github.com/example/tablepos/pkg/errs"
	"go.uber.org/zap"
)

var ErrNoSession = errors.New("session id is required")

type Manager struct {
	system  *actor.ActorSystem
	catalog cart.Catalog
	orders  OrderCreator
	timeout time.Duration
	idle    time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*actor.PID
}

func NewManager(cfg config.SessionConfig, catalog cart.Catalog, orders OrderCreator, logger *zap.Logger) *Manager {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Manager{
		system:   actor.NewActorSystem(),
		catalog:  catalog,
		orders:   orders,
		timeout:  timeout,
		idle:     cfg.IdleTimeout,
		logger:   logger.Named("cart-actor"),
		sessions: make(map[string]*actor.PID),
	}
}

func (m *Manager) pid(sessionID string) *actor.PID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pid, ok := m.sessions[sessionID]; ok {
		return pid
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return &CartActor{
			sessionID: sessionID,
			catalog:   m.catalog,
			orders:    m.orders,
			timeout:   m.timeout,
			idle:      m.idle,
			onIdle:    m.forget,
			logger:    m.logger.With(zap.String("session_id", sessionID)),
		}
	})
	pid := m.system.Root.Spawn(props)
	m.sessions[sessionID] = pid
	return pid
}

func (m *Manager) forget(sessionID string, pid *actor.PID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.sessions[sessionID]; ok && current.Id == pid.Id {
		delete(m.sessions, sessionID)
	}
}

// Send delivers msg to the cart of sessionID, starting the actor on first use,
// and waits for its reply. A message that reaches an actor which stopped on
// idle is retried once on a new actor. A message already queued in the mailbox
// when the actor stops can still time out as a fetch error.
func (m *Manager) Send(sessionID string, msg interface{}) (*Reply, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errs.E(errs.KindInvalid, "session", ErrNoSession)
	}

	// checkout waits on the store, so give it room beyond its own deadline
	timeout := m.timeout
	if _, ok := msg.(*Checkout); ok {
		timeout += time.Second
	}

	pid := m.pid(sessionID)
	result, err := m.system.Root.RequestFuture(pid, msg, timeout).Result()
	if errors.Is(err, actor.ErrDeadLetter) {
		// the actor stopped on idle after pid was looked up; its cart is gone
		// either way, so start a fresh one
		m.forget(sessionID, pid)
		result, err = m.system.Root.RequestFuture(m.pid(sessionID), msg, timeout).Result()
	}
	if err != nil {
		m.logger.Error("Cart request failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, errs.E(errs.KindFetch, "session", fmt.Errorf("cart %s: %w", sessionID, err))
	}

	reply, ok := result.(*Reply)
	if !ok {
		return nil, errs.E(errs.KindFetch, "session", fmt.Errorf("unexpected reply %T", result))
	}
	return reply, reply.Err
}

// Close stops the cart actor of sessionID, discarding its cart.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	pid, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if ok {
		if err := m.system.Root.PoisonFuture(pid).Wait(); err != nil {
			m.logger.Warn("Failed to stop cart actor", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	pids := make([]*actor.PID, 0, len(m.sessions))
	for id, pid := range m.sessions {
		pids = append(pids, pid)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, pid := range pids {
		m.system.Root.Poison(pid)
	}
	m.system.Shutdown()
}
