package commands

import (
	"sync"

	"github.com/cmdop/cmdop-bot/pkg/audit"
	"github.com/cmdop/cmdop-bot/pkg/cmdop"
	"github.com/cmdop/cmdop-bot/pkg/permissions"
	"github.com/cmdop/cmdop-bot/pkg/ratelimit"
)

// Env bundles the services command handlers operate on. The target
// machine and model can be switched at runtime, so access goes through
// a mutex.
type Env struct {
	Client  cmdop.Client
	Store   *permissions.Store
	Limiter *ratelimit.Limiter
	Audit   *audit.Logger

	mu      sync.RWMutex
	machine string
	model   string
}

func NewEnv(client cmdop.Client, store *permissions.Store, limiter *ratelimit.Limiter, auditLog *audit.Logger, machine, model string) *Env {
	return &Env{
		Client:  client,
		Store:   store,
		Limiter: limiter,
		Audit:   auditLog,
		machine: machine,
		model:   cmdop.ResolveModelAlias(model),
	}
}

func (e *Env) Machine() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.machine
}

func (e *Env) SetMachine(machine string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine = machine
}

func (e *Env) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

func (e *Env) SetModel(model string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = cmdop.ResolveModelAlias(model)
}
