// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

// Package audit keeps a tamper-evident trail of access decisions and
// permission changes. Each JSON line carries an HMAC over its content and the
// previous line's hash, so any edit or deletion breaks the chain.
package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

type EventType string

const (
	EventCommandDispatched EventType = "command_dispatched"
	EventCommandDenied     EventType = "command_denied"
	EventPermissionChange  EventType = "permission_change"
	EventConfigChange      EventType = "config_change"
	EventRateLimitHit      EventType = "rate_limit_hit"
)

type Event struct {
	Timestamp    time.Time         `json:"timestamp"`
	Type         EventType         `json:"type"`
	Actor        int64             `json:"actor,omitempty"`
	Chat         int64             `json:"chat,omitempty"`
	Action       string            `json:"action"`
	Target       string            `json:"target,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	Success      bool              `json:"success"`
	Hash         string            `json:"hash"`
	PreviousHash string            `json:"previous_hash,omitempty"`
}

type Config struct {
	Path string
	// Key signs every entry. A random key is generated when empty, which
	// makes the trail verifiable only within the current process.
	Key []byte
}

// ErrChainBroken is returned by Verify when an entry was altered, removed or
// reordered.
var ErrChainBroken = errors.New("audit chain broken")

// Logger appends events to one file. A nil *Logger accepts and drops every
// event, so callers need no enabled check.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	key      []byte
	lastHash string
	now      func() time.Time
}

// Open appends to cfg.Path, continuing the chain of any existing entries.
func Open(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("audit log path is required")
	}
	key := cfg.Key
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate audit key: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	last, err := lastHash(cfg.Path)
	if err != nil {
		return nil, err
	}
	file, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		file:     file,
		key:      key,
		lastHash: last,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) Log(event Event) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return errors.New("audit logger is closed")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.PreviousHash = l.lastHash
	event.Hash = computeHash(l.key, event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	l.lastHash = event.Hash
	return nil
}

// CommandDecision records the outcome of a permission check for a command.
func (l *Logger) CommandDecision(actor, chat int64, command string, allowed bool) error {
	typ := EventCommandDenied
	if allowed {
		typ = EventCommandDispatched
	}
	return l.Log(Event{
		Type:    typ,
		Actor:   actor,
		Chat:    chat,
		Action:  command,
		Success: allowed,
	})
}

// PermissionChange records a change of target's permission mask.
func (l *Logger) PermissionChange(actor, target int64, action, before, after string) error {
	return l.Log(Event{
		Type:   EventPermissionChange,
		Actor:  actor,
		Action: action,
		Target: strconv.FormatInt(target, 10),
		Details: map[string]string{
			"before": before,
			"after":  after,
		},
		Success: true,
	})
}

func (l *Logger) ConfigChange(actor int64, field, before, after string) error {
	return l.Log(Event{
		Type:   EventConfigChange,
		Actor:  actor,
		Action: "set",
		Target: field,
		Details: map[string]string{
			"before": before,
			"after":  after,
		},
		Success: true,
	})
}

func (l *Logger) RateLimitHit(actor, chat int64) error {
	return l.Log(Event{
		Type:   EventRateLimitHit,
		Actor:  actor,
		Chat:   chat,
		Action: "throttled",
	})
}

// computeHash signs every field except Hash itself. encoding/json sorts the
// Details keys, so the encoding is stable.
func computeHash(key []byte, event Event) string {
	event.Hash = ""
	details := []byte("null")
	if len(event.Details) > 0 {
		details, _ = json.Marshal(event.Details)
	}

	h := hmac.New(sha256.New, key)
	fmt.Fprintf(h, "%s|%s|%d|%d|%s|%s|%s|%t|%s",
		event.Timestamp.Format(time.RFC3339Nano),
		event.Type,
		event.Actor,
		event.Chat,
		event.Action,
		event.Target,
		details,
		event.Success,
		event.PreviousHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func lastHash(path string) (string, error) {
	var last string
	err := scan(path, func(_ int, event Event) error {
		last = event.Hash
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return last, err
}

func scan(path string, fn func(line int, event Event) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(sc.Bytes(), &event); err != nil {
			return fmt.Errorf("failed to parse audit event at line %d: %w", line, err)
		}
		if err := fn(line, event); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Verify re-checks every entry of the trail at path against key. It returns
// the number of verified entries.
func Verify(path string, key []byte) (int, error) {
	var (
		prev  string
		count int
	)
	err := scan(path, func(line int, event Event) error {
		if event.PreviousHash != prev {
			return fmt.Errorf("%w: line %d does not follow its predecessor", ErrChainBroken, line)
		}
		if !hmac.Equal([]byte(event.Hash), []byte(computeHash(key, event))) {
			return fmt.Errorf("%w: line %d hash mismatch", ErrChainBroken, line)
		}
		prev = event.Hash
		count++
		return nil
	})
	return count, err
}
