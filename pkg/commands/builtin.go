package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cmdop/cmdop-bot/pkg/audit"
	"github.com/cmdop/cmdop-bot/pkg/cmdop"
	"github.com/cmdop/cmdop-bot/pkg/identity"
	"github.com/cmdop/cmdop-bot/pkg/permissions"
	"github.com/cmdop/cmdop-bot/pkg/utils"
)

const maxReplyOutput = 8000

// BuiltinDefinitions returns every built-in command wired to env.
func BuiltinDefinitions(env *Env) []Definition {
	return []Definition{
		{
			Name:        "start",
			Description: "Greet the bot",
			Usage:       "/start",
			Handler:     replyText("Hello! I relay commands to machines connected to CMDOP. Try /help."),
		},
		{
			Name:        "help",
			Description: "Show available commands",
			Usage:       "/help",
			Handler: func(_ context.Context, req Request) error {
				defs := NewRegistry(BuiltinDefinitions(env)).ForChannel(req.Channel)
				return reply(req, FormatHelpMessage(defs))
			},
		},
		{
			Name:          "status",
			Description:   "Show the current machine, model, and your access level",
			Usage:         "/status",
			RequiredLevel: permissions.LevelRead,
			Handler: func(_ context.Context, req Request) error {
				return handleStatus(env, req)
			},
		},
		{
			Name:          "shell",
			Aliases:       []string{"exec", "sh"},
			Description:   "Run a shell command on the current machine",
			Usage:         "/shell <command>",
			RequiredLevel: permissions.LevelExecute,
			Handler: func(ctx context.Context, req Request) error {
				return handleShell(ctx, env, req)
			},
		},
		{
			Name:          "agent",
			Description:   "Run an AI agent task on the current machine",
			Usage:         "/agent <task>",
			RequiredLevel: permissions.LevelExecute,
			Handler: func(ctx context.Context, req Request) error {
				return handleAgent(ctx, env, req, req.Args())
			},
		},
		{
			Name:          "files",
			Description:   "Browse files on the current machine",
			Usage:         "/files <ls|cat|info> <path>",
			RequiredLevel: permissions.LevelFiles,
			Handler: func(ctx context.Context, req Request) error {
				return handleFiles(ctx, env, req)
			},
		},
		{
			Name:          "ls",
			Description:   "List a remote directory",
			Usage:         "/ls [path]",
			RequiredLevel: permissions.LevelFiles,
			Handler: func(ctx context.Context, req Request) error {
				path := req.Args()
				if path == "" {
					path = "."
				}
				return handleListFiles(ctx, env, req, path)
			},
		},
		{
			Name:          "cat",
			Description:   "Print a remote file",
			Usage:         "/cat <path>",
			RequiredLevel: permissions.LevelFiles,
			Handler: func(ctx context.Context, req Request) error {
				path := req.Args()
				if path == "" {
					return reply(req, "Usage: /cat <path>")
				}
				return handleReadFile(ctx, env, req, path)
			},
		},
		{
			// Gated inside the handler: switching is checked against
			// the target machine, which the dispatcher cannot see.
			Name:        "machine",
			Description: "Show or switch the target machine",
			Usage:       "/machine [hostname]",
			Handler: func(ctx context.Context, req Request) error {
				return handleMachine(ctx, env, req)
			},
		},
		{
			Name:          "model",
			Description:   "Show or switch the agent model tier",
			Usage:         "/model [cheap|balanced|smart|fast]",
			RequiredLevel: permissions.LevelExecute,
			Handler: func(_ context.Context, req Request) error {
				return handleModel(env, req)
			},
		},
		{
			Name:          "grant",
			Description:   "Grant a user a permission level on a machine",
			Usage:         "/grant <channel:user> <machine|*> <level>",
			RequiredLevel: permissions.LevelAdmin,
			Handler: func(_ context.Context, req Request) error {
				return handleGrant(env, req)
			},
		},
		{
			Name:          "revoke",
			Description:   "Revoke a user's grant on a machine",
			Usage:         "/revoke <channel:user> <machine|*>",
			RequiredLevel: permissions.LevelAdmin,
			Handler: func(_ context.Context, req Request) error {
				return handleRevoke(env, req)
			},
		},
		{
			Name:          "admin",
			Description:   "Manage administrators",
			Usage:         "/admin <add|remove|list> [channel:user]",
			RequiredLevel: permissions.LevelAdmin,
			Handler: func(_ context.Context, req Request) error {
				return handleAdmin(env, req)
			},
		},
		{
			Name:          "perms",
			Description:   "List active grants",
			Usage:         "/perms",
			RequiredLevel: permissions.LevelAdmin,
			Handler: func(_ context.Context, req Request) error {
				return handlePerms(env, req)
			},
		},
	}
}

// FormatHelpMessage renders usage lines with the level each command
// requires.
func FormatHelpMessage(defs []Definition) string {
	if len(defs) == 0 {
		return "No commands available."
	}

	lines := make([]string, 0, len(defs))
	for _, def := range defs {
		usage := def.Usage
		if usage == "" {
			usage = "/" + def.Name
		}
		desc := def.Description
		if desc == "" {
			desc = "No description"
		}
		if def.RequiredLevel > permissions.LevelNone {
			desc = fmt.Sprintf("%s (requires %s)", desc, def.RequiredLevel)
		}
		lines = append(lines, fmt.Sprintf("%s - %s", usage, desc))
	}
	return strings.Join(lines, "\n")
}

func handleStatus(env *Env, req Request) error {
	id, err := SenderIdentity(req)
	if err != nil {
		return reply(req, fmt.Sprintf("Cannot resolve your identity: %v", err))
	}

	machine := env.Machine()
	machineLabel := machine
	if machineLabel == "" {
		machineLabel = "(none)"
	}

	var level string
	if env.Store.IsAdmin(id.String()) {
		level = "admin"
	} else if machine == "" {
		level = permissions.LevelNone.String()
	} else {
		level = env.Store.EffectiveLevel(id.String(), machine).String()
	}

	return reply(req, fmt.Sprintf(
		"Machine: %s\nModel: %s\nYou: %s (access: %s)",
		machineLabel, env.Model(), id, level,
	))
}

func handleShell(ctx context.Context, env *Env, req Request) error {
	command := req.Args()
	if command == "" {
		return reply(req, "Usage: /shell <command>")
	}

	result, err := env.Client.ExecuteShell(ctx, env.Machine(), command, cmdop.DefaultShellTimeout)
	if err != nil {
		return reply(req, fmt.Sprintf("Shell execution failed: %v", err))
	}

	output := strings.TrimRight(result.Output, "\n")
	if output == "" {
		output = "(no output)"
	}
	text := fmt.Sprintf("```\n%s\n```", utils.TruncateOutput(output, maxReplyOutput))
	if result.ExitCode != 0 {
		text += fmt.Sprintf("\nExit code: %d", result.ExitCode)
	}
	return reply(req, text)
}

// handleAgent also serves free-form text routed from the gateway.
func handleAgent(ctx context.Context, env *Env, req Request, prompt string) error {
	if prompt == "" {
		return reply(req, "Usage: /agent <task>")
	}

	result, err := env.Client.RunAgent(ctx, env.Machine(), prompt, env.Model())
	if err != nil {
		return reply(req, fmt.Sprintf("Agent run failed: %v", err))
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "unknown error"
		}
		return reply(req, fmt.Sprintf("Agent run failed: %s", msg))
	}
	return reply(req, utils.TruncateOutput(result.Text, maxReplyOutput))
}

func handleFiles(ctx context.Context, env *Env, req Request) error {
	args := strings.Fields(req.Args())
	if len(args) == 0 {
		return reply(req, "Usage: /files <ls|cat|info> <path>")
	}

	sub := args[0]
	path := "."
	if len(args) > 1 {
		path = strings.Join(args[1:], " ")
	}

	switch sub {
	case "ls", "list":
		return handleListFiles(ctx, env, req, path)
	case "cat", "read":
		if len(args) < 2 {
			return reply(req, "Usage: /files cat <path>")
		}
		return handleReadFile(ctx, env, req, path)
	case "info", "stat":
		if len(args) < 2 {
			return reply(req, "Usage: /files info <path>")
		}
		return handleFileInfo(ctx, env, req, path)
	default:
		return reply(req, fmt.Sprintf("Unknown subcommand: %s. Try ls, cat, or info.", sub))
	}
}

func handleListFiles(ctx context.Context, env *Env, req Request, path string) error {
	entries, err := env.Client.ListFiles(ctx, env.Machine(), path)
	if err != nil {
		return reply(req, fmt.Sprintf("Failed to list %s: %v", path, err))
	}
	if len(entries) == 0 {
		return reply(req, fmt.Sprintf("%s is empty.", path))
	}

	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, fmt.Sprintf("Contents of %s:", path))
	for _, e := range entries {
		if e.Type == "directory" {
			lines = append(lines, fmt.Sprintf("📁 %s/", e.Name))
		} else {
			lines = append(lines, fmt.Sprintf("📄 %s (%s)", e.Name, utils.FormatBytes(e.Size)))
		}
	}
	return reply(req, strings.Join(lines, "\n"))
}

func handleReadFile(ctx context.Context, env *Env, req Request, path string) error {
	data, err := env.Client.ReadFile(ctx, env.Machine(), path)
	if err != nil {
		return reply(req, fmt.Sprintf("Failed to read %s: %v", path, err))
	}
	if len(data) == 0 {
		return reply(req, fmt.Sprintf("%s is empty.", path))
	}
	return reply(req, fmt.Sprintf("```\n%s\n```", utils.TruncateOutput(string(data), maxReplyOutput)))
}

func handleFileInfo(ctx context.Context, env *Env, req Request, path string) error {
	info, err := env.Client.FileInfo(ctx, env.Machine(), path)
	if err != nil {
		return reply(req, fmt.Sprintf("Failed to stat %s: %v", path, err))
	}

	lines := []string{
		fmt.Sprintf("Path: %s", info.Path),
		fmt.Sprintf("Type: %s", info.Type),
		fmt.Sprintf("Size: %s", utils.FormatBytes(info.Size)),
	}
	if info.ModifiedAt != "" {
		lines = append(lines, fmt.Sprintf("Modified: %s", info.ModifiedAt))
	}
	if info.Permissions != "" {
		lines = append(lines, fmt.Sprintf("Permissions: %s", info.Permissions))
	}
	return reply(req, strings.Join(lines, "\n"))
}

func handleMachine(ctx context.Context, env *Env, req Request) error {
	arg := req.Args()
	if arg == "" {
		machine := env.Machine()
		if machine == "" {
			return reply(req, "No machine selected. Use /machine <hostname>.")
		}
		return reply(req, fmt.Sprintf("Current machine: %s", machine))
	}

	id, err := SenderIdentity(req)
	if err != nil {
		return reply(req, fmt.Sprintf("Cannot resolve your identity: %v", err))
	}

	// Resolution is a remote lookup, so a caller with no standing on
	// the requested name never reaches the API.
	admin := env.Store.IsAdmin(id.String())
	if !admin && env.Store.EffectiveLevel(id.String(), arg) == permissions.LevelNone {
		return reply(req, fmt.Sprintf("Access denied: switching to %s requires execute on it.", arg))
	}

	resolved, err := env.Client.ResolveMachine(ctx, arg)
	if err != nil {
		return reply(req, fmt.Sprintf("Cannot resolve machine %q: %v", arg, err))
	}
	// Switching is authorized against the target machine, not the
	// current one.
	if !admin && env.Store.EffectiveLevel(id.String(), resolved) < permissions.LevelExecute {
		return reply(req, fmt.Sprintf("Access denied: switching to %s requires execute on it.", resolved))
	}
	env.SetMachine(resolved)
	return reply(req, fmt.Sprintf("Switched to machine: %s", resolved))
}

func handleModel(env *Env, req Request) error {
	arg := req.Args()
	if arg == "" {
		return reply(req, fmt.Sprintf(
			"Current model: %s\nAvailable tiers: %s",
			env.Model(), strings.Join(cmdop.ModelTiers(), ", "),
		))
	}
	env.SetModel(arg)
	return reply(req, fmt.Sprintf("Switched to model: %s", env.Model()))
}

func handleGrant(env *Env, req Request) error {
	args := strings.Fields(req.Args())
	if len(args) != 3 {
		return reply(req, "Usage: /grant <channel:user> <machine|*> <level>")
	}

	id, err := parseIdentityArg(args[0], req.Channel)
	if err != nil {
		return reply(req, err.Error())
	}
	level, err := permissions.ParseLevel(args[2])
	if err != nil {
		return reply(req, fmt.Sprintf(
			"Invalid level %q. Valid levels: %s", args[2], levelList(),
		))
	}

	if err := env.Store.Grant(id.String(), args[1], level); err != nil {
		return reply(req, fmt.Sprintf("Grant failed: %v", err))
	}

	logPermissionChange(env, req, audit.EventTypePermissionGrant, id.String(), map[string]any{
		"machine": args[1],
		"level":   level.String(),
	})

	if level == permissions.LevelNone {
		return reply(req, fmt.Sprintf("Revoked %s on %s.", id, args[1]))
	}
	return reply(req, fmt.Sprintf("Granted %s to %s on %s.", level, id, args[1]))
}

func handleRevoke(env *Env, req Request) error {
	args := strings.Fields(req.Args())
	if len(args) != 2 {
		return reply(req, "Usage: /revoke <channel:user> <machine|*>")
	}

	id, err := parseIdentityArg(args[0], req.Channel)
	if err != nil {
		return reply(req, err.Error())
	}
	if err := env.Store.Revoke(id.String(), args[1]); err != nil {
		return reply(req, fmt.Sprintf("Revoke failed: %v", err))
	}

	logPermissionChange(env, req, audit.EventTypePermissionRevoke, id.String(), map[string]any{
		"machine": args[1],
	})
	return reply(req, fmt.Sprintf("Revoked %s on %s.", id, args[1]))
}

func handleAdmin(env *Env, req Request) error {
	args := strings.Fields(req.Args())
	if len(args) == 0 {
		return reply(req, "Usage: /admin <add|remove|list> [channel:user]")
	}

	switch args[0] {
	case "list":
		admins := env.Store.Admins()
		if len(admins) == 0 {
			return reply(req, "No administrators configured.")
		}
		sort.Strings(admins)
		return reply(req, "Administrators:\n- "+strings.Join(admins, "\n- "))

	case "add", "remove":
		if len(args) != 2 {
			return reply(req, fmt.Sprintf("Usage: /admin %s <channel:user>", args[0]))
		}
		id, err := parseIdentityArg(args[1], req.Channel)
		if err != nil {
			return reply(req, err.Error())
		}

		if args[0] == "add" {
			if err := env.Store.AddAdmin(id.String()); err != nil {
				return reply(req, fmt.Sprintf("Failed to add admin: %v", err))
			}
			logPermissionChange(env, req, audit.EventTypeAdminChange, id.String(), map[string]any{"change": "add"})
			return reply(req, fmt.Sprintf("%s is now an administrator.", id))
		}
		if err := env.Store.RemoveAdmin(id.String()); err != nil {
			return reply(req, fmt.Sprintf("Failed to remove admin: %v", err))
		}
		logPermissionChange(env, req, audit.EventTypeAdminChange, id.String(), map[string]any{"change": "remove"})
		return reply(req, fmt.Sprintf("%s is no longer an administrator.", id))

	default:
		return reply(req, "Usage: /admin <add|remove|list> [channel:user]")
	}
}

func handlePerms(env *Env, req Request) error {
	grants := env.Store.Grants()
	if len(grants) == 0 {
		return reply(req, "No grants configured.")
	}

	lines := make([]string, 0, len(grants)+1)
	lines = append(lines, "Active grants:")
	for _, g := range grants {
		lines = append(lines, fmt.Sprintf("- %s: %s on %s", g.Identity, g.Level, g.Machine))
	}
	return reply(req, strings.Join(lines, "\n"))
}

// parseIdentityArg accepts "channel:user" or a bare user ID, which is
// scoped to the channel the command came from.
func parseIdentityArg(arg, channel string) (identity.Identity, error) {
	if !strings.Contains(arg, ":") {
		arg = channel + ":" + arg
	}
	id, err := identity.Parse(arg)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("invalid identity %q: %w", arg, err)
	}
	return id, nil
}

func logPermissionChange(env *Env, req Request, eventType audit.EventType, subject string, details map[string]any) {
	if env.Audit == nil {
		return
	}
	actor := req.Channel + ":" + req.SenderID
	if id, err := SenderIdentity(req); err == nil {
		actor = id.String()
	}
	env.Audit.LogPermissionChange(eventType, actor, subject, details)
}

func replyText(text string) Handler {
	return func(_ context.Context, req Request) error {
		return reply(req, text)
	}
}

func reply(req Request, text string) error {
	if req.Reply == nil {
		return nil
	}
	return req.Reply(text)
}

func levelList() string {
	levels := permissions.Levels()
	names := make([]string, 0, len(levels))
	for _, l := range levels {
		names = append(names, l.String())
	}
	return strings.Join(names, ", ")
}
