package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmdop/cmdop-bot/pkg/audit"
	"github.com/cmdop/cmdop-bot/pkg/identity"
	"github.com/cmdop/cmdop-bot/pkg/logger"
	"github.com/cmdop/cmdop-bot/pkg/permissions"
	"github.com/cmdop/cmdop-bot/pkg/ratelimit"
)

type Outcome int

const (
	// OutcomePassthrough means the text was not a command and should
	// continue to the default handler.
	OutcomePassthrough Outcome = iota
	OutcomeHandled
	OutcomeDenied
	OutcomeRateLimited
	OutcomeUnknown
)

type Result struct {
	Outcome Outcome
	Command string
	Err     error
}

type Dispatcher struct {
	reg *Registry
	env *Env
}

func NewDispatcher(reg *Registry, env *Env) *Dispatcher {
	return &Dispatcher{reg: reg, env: env}
}

// Dispatch parses req.Text, enforces rate limits and permissions, and
// runs the matching handler. A denial is reported to the sender and in
// the result, not as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	cmdName, ok := parseCommandName(req.Text)
	if !ok {
		return Result{Outcome: OutcomePassthrough}
	}

	id, err := SenderIdentity(req)
	if err != nil {
		return Result{Outcome: OutcomeDenied, Command: cmdName, Err: err}
	}

	if d.env.Limiter != nil && !d.env.Limiter.Allow(id.String()) {
		if d.env.Audit != nil {
			d.env.Audit.Log(audit.Event{
				EventType: audit.EventTypeRateLimited,
				Actor:     id.String(),
				Action:    "/" + cmdName,
			})
		}
		replyTo(req, throttleMessage(d.env.Limiter, id.String()))
		return Result{Outcome: OutcomeRateLimited, Command: cmdName}
	}

	def, found := d.reg.find(req.Channel, cmdName)
	if !found {
		replyTo(req, fmt.Sprintf("Unknown command /%s. Try /help.", cmdName))
		return Result{Outcome: OutcomeUnknown, Command: cmdName}
	}

	if allowed, reason := d.Authorize(id, def.RequiredLevel); !allowed {
		if d.env.Audit != nil {
			d.env.Audit.LogDenied(id.String(), "/"+def.Name, d.env.Machine())
		}
		replyTo(req, reason)
		return Result{Outcome: OutcomeDenied, Command: def.Name}
	}

	err = def.Handler(ctx, req)
	if err != nil {
		logger.ErrorCF("commands", "Command failed", map[string]any{
			"command": def.Name,
			"error":   err.Error(),
		})
	}
	if d.env.Audit != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		d.env.Audit.LogCommand(id.String(), "/"+def.Name, d.env.Machine(), err == nil, errMsg)
	}
	return Result{Outcome: OutcomeHandled, Command: def.Name, Err: err}
}

// Authorize checks whether id holds required on the current machine.
// The returned reason is suitable for sending back to the user.
func (d *Dispatcher) Authorize(id identity.Identity, required permissions.Level) (bool, string) {
	if required == permissions.LevelNone {
		return true, ""
	}

	// Admin commands are not machine-scoped: they manage the store
	// itself and must work before any machine is selected.
	if required == permissions.LevelAdmin {
		if d.env.Store.IsAdmin(id.String()) {
			return true, ""
		}
		return false, "Access denied: this command requires administrator access."
	}

	machine := d.env.Machine()
	allowed, err := d.env.Store.Check(id.String(), machine, required)
	if err != nil {
		if errors.Is(err, permissions.ErrInvalidScope) {
			return false, "No machine selected. An admin can set one with /machine <name>."
		}
		return false, fmt.Sprintf("Permission check failed: %v", err)
	}
	if !allowed {
		have := d.env.Store.EffectiveLevel(id.String(), machine)
		return false, fmt.Sprintf(
			"Access denied: this command requires %s on %s (you have %s).",
			required, machine, have,
		)
	}
	return true, ""
}

// HandleFreeText routes a non-command message to the agent. It applies
// the same rate limiting and permission gate as /agent.
func (d *Dispatcher) HandleFreeText(ctx context.Context, req Request) Result {
	prompt := strings.TrimSpace(req.Text)
	if prompt == "" {
		return Result{Outcome: OutcomePassthrough}
	}

	id, err := SenderIdentity(req)
	if err != nil {
		return Result{Outcome: OutcomeDenied, Command: "agent", Err: err}
	}

	if d.env.Limiter != nil && !d.env.Limiter.Allow(id.String()) {
		if d.env.Audit != nil {
			d.env.Audit.Log(audit.Event{
				EventType: audit.EventTypeRateLimited,
				Actor:     id.String(),
				Action:    "agent",
			})
		}
		replyTo(req, throttleMessage(d.env.Limiter, id.String()))
		return Result{Outcome: OutcomeRateLimited, Command: "agent"}
	}

	if allowed, reason := d.Authorize(id, permissions.LevelExecute); !allowed {
		if d.env.Audit != nil {
			d.env.Audit.LogDenied(id.String(), "agent", d.env.Machine())
		}
		replyTo(req, reason)
		return Result{Outcome: OutcomeDenied, Command: "agent"}
	}

	err = handleAgent(ctx, d.env, req, prompt)
	if d.env.Audit != nil {
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		}
		d.env.Audit.LogCommand(id.String(), "agent", d.env.Machine(), err == nil, errMsg)
	}
	return Result{Outcome: OutcomeHandled, Command: "agent", Err: err}
}

// SenderIdentity builds the permission identity for a request. Channel
// sender IDs may carry a "|username" suffix; only the stable ID part
// identifies the user.
func SenderIdentity(req Request) (identity.Identity, error) {
	senderID := req.SenderID
	if i := strings.Index(senderID, "|"); i >= 0 {
		senderID = senderID[:i]
	}
	return identity.New(identity.Channel(req.Channel), senderID)
}

func parseCommandName(input string) (string, bool) {
	token := firstToken(input)
	if token == "" || !strings.HasPrefix(token, "/") {
		return "", false
	}

	name := strings.TrimPrefix(token, "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return "", false
	}
	return name, true
}

func firstToken(input string) string {
	parts := strings.Fields(strings.TrimSpace(input))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func commandArgs(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// throttleMessage renders the rate limit denial with a retry hint when
// the wait is long enough to be worth stating.
func throttleMessage(l *ratelimit.Limiter, id string) string {
	wait := l.RetryAfter(id)
	if wait < time.Second {
		return "Rate limit exceeded. Please slow down."
	}
	return fmt.Sprintf("Rate limit exceeded. Try again in %s.", wait.Round(time.Second))
}

func replyTo(req Request, text string) {
	if req.Reply == nil {
		return
	}
	if err := req.Reply(text); err != nil {
		logger.ErrorCF("commands", "Failed to send reply", map[string]any{"error": err.Error()})
	}
}
