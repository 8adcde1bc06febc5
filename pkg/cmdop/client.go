// Package cmdop is the client for the remote CMDOP execution API: shell
// commands, file operations, and AI agent runs on a designated machine.
// The bot only ever calls this after the permission store approves the
// request.
package cmdop

import (
	"context"
	"fmt"
	"time"
)

// DefaultServer is the hosted CMDOP endpoint.
const DefaultServer = "https://api.cmdop.com"

// DefaultShellTimeout bounds a single shell execution.
const DefaultShellTimeout = 30 * time.Second

// ShellResult is the outcome of a remote shell execution.
type ShellResult struct {
	Output   string `json:"output"`
	ExitCode int    `json:"exit_code"`
}

// FileEntry is one directory listing entry.
type FileEntry struct {
	Name  string `json:"name"`
	Type  string `json:"type"` // "file" or "directory"
	Size  int64  `json:"size"`
	Mtime string `json:"mtime,omitempty"`
}

// FileInfo describes a single remote path.
type FileInfo struct {
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	ModifiedAt  string `json:"modified_at,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// AgentResult is the final response of an AI agent run.
type AgentResult struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

// Client is the operation surface the command handlers depend on. The
// remote protocol, retries, and response shapes stay behind it.
type Client interface {
	// ExecuteShell runs a shell command on machine and returns its output
	// and exit code.
	ExecuteShell(ctx context.Context, machine, command string, timeout time.Duration) (ShellResult, error)

	// ListFiles lists a remote directory.
	ListFiles(ctx context.Context, machine, path string) ([]FileEntry, error)

	// ReadFile returns the contents of a remote file.
	ReadFile(ctx context.Context, machine, path string) ([]byte, error)

	// FileInfo returns metadata for a remote path.
	FileInfo(ctx context.Context, machine, path string) (FileInfo, error)

	// RunAgent runs an AI agent task on machine. model is a tier alias
	// resolved server-side; empty means the server default.
	RunAgent(ctx context.Context, machine, prompt, model string) (AgentResult, error)

	// ResolveMachine resolves a possibly-partial hostname to the full
	// hostname of a connected machine.
	ResolveMachine(ctx context.Context, hostname string) (string, error)

	Close() error
}

// APIError is a non-2xx response from the CMDOP API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("cmdop api error [%s]: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("cmdop api error: %s (status %d)", e.Message, e.Status)
}
