package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Module is a background component that can be started and stopped.
type Module interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context)
}

// Manager coordinates lifecycle of all registered modules.
type Manager struct {
	modules []Module
	log     *zap.Logger
	mu      sync.Mutex
	started bool
}

func NewManager(log *zap.Logger, mods ...Module) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{modules: mods, log: log.Named("actions")}
}

// Add registers additional modules before Start is invoked.
func (m *Manager) Add(mod Module) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("actions.Manager: cannot add %s after start", mod.Name())
	}
	m.modules = append(m.modules, mod)
	return nil
}

// Names lists registered modules in start order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.modules))
	for _, mod := range m.modules {
		if mod != nil {
			out = append(out, mod.Name())
		}
	}
	return out
}

// Start starts modules in order. If one fails, the ones already running
// are stopped in reverse order.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("actions.Manager already started")
	}

	started := make([]Module, 0, len(m.modules))
	for _, mod := range m.modules {
		if mod == nil {
			continue
		}
		if err := mod.Start(ctx); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				started[i].Stop(ctx)
			}
			return fmt.Errorf("module %s failed: %w", mod.Name(), err)
		}
		m.log.Info("module started", zap.String("module", mod.Name()))
		started = append(started, mod)
	}

	m.started = true
	return nil
}

// Stop shuts down all modules in reverse order.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	for i := len(m.modules) - 1; i >= 0; i-- {
		if mod := m.modules[i]; mod != nil {
			mod.Stop(ctx)
			m.log.Info("module stopped", zap.String("module", mod.Name()))
		}
	}
	m.started = false
}
