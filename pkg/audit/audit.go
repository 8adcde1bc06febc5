// Package audit records security-relevant bot activity: permission
// mutations, denied authorization checks, and forwarded command
// executions. Events are JSON lines chained with an HMAC so after-the-fact
// tampering is detectable.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType classifies an audit event.
type EventType string

const (
	EventTypeCommand          EventType = "command"
	EventTypePermissionGrant  EventType = "permission_grant"
	EventTypePermissionRevoke EventType = "permission_revoke"
	EventTypeAdminChange      EventType = "admin_change"
	EventTypeAccessDenied     EventType = "access_denied"
	EventTypeRateLimited      EventType = "rate_limited"
)

// Event is a single audit record.
type Event struct {
	Timestamp    time.Time      `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	Actor        string         `json:"actor,omitempty"` // identity that triggered the event
	Action       string         `json:"action"`
	Machine      string         `json:"machine,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Hash         string         `json:"hash,omitempty"`
	PreviousHash string         `json:"previous_hash,omitempty"`
}

// Logger appends audit events to a JSON-lines file.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	key      []byte
	lastHash string
}

// NewLogger opens (or creates) the audit log at path. An empty key
// disables HMAC chaining.
func NewLogger(path string, key []byte) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Logger{file: file, key: key}, nil
}

// GenerateKey returns a random 32-byte HMAC key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// Log appends an event, filling in timestamp and hash chain.
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	event.PreviousHash = l.lastHash

	if len(l.key) > 0 {
		event.Hash = ""
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		mac := hmac.New(sha256.New, l.key)
		mac.Write(payload)
		event.Hash = hex.EncodeToString(mac.Sum(nil))
	}

	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := l.file.Write(append(line, '\n')); err != nil {
		return err
	}
	l.lastHash = event.Hash
	return nil
}

// LogCommand records a forwarded command execution.
func (l *Logger) LogCommand(actor, command, machine string, success bool, errMsg string) error {
	return l.Log(Event{
		EventType: EventTypeCommand,
		Actor:     actor,
		Action:    command,
		Machine:   machine,
		Success:   success,
		Error:     errMsg,
	})
}

// LogDenied records a failed authorization check.
func (l *Logger) LogDenied(actor, command, machine string) error {
	return l.Log(Event{
		EventType: EventTypeAccessDenied,
		Actor:     actor,
		Action:    command,
		Machine:   machine,
		Success:   false,
	})
}

// LogPermissionChange records a grant, revoke, or admin set mutation.
func (l *Logger) LogPermissionChange(eventType EventType, actor, subject string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["subject"] = subject
	return l.Log(Event{
		EventType: eventType,
		Actor:     actor,
		Action:    string(eventType),
		Details:   details,
		Success:   true,
	})
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
