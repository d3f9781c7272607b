// picobot - Telegram command bot with pluggable, permission-gated commands
// License: MIT
//
// Copyright (c) 2026 PicoBot contributors

// Package redaction masks secrets before they reach a log sink: bot tokens,
// bearer credentials, proxy passwords and key=value secrets.
package redaction

import (
	"regexp"
	"strings"
	"sync"
)

// Config holds redaction configuration.
type Config struct {
	Enabled bool `json:"enabled"`

	// RedactTokens masks Telegram bot tokens and bearer credentials.
	RedactTokens bool `json:"redact_tokens"`

	// RedactURLCredentials masks the password part of user:pass@host URLs,
	// as found in proxy settings.
	RedactURLCredentials bool `json:"redact_url_credentials"`

	// RedactAssignments masks values in key=value and "key": "value" pairs
	// whose key names a secret.
	RedactAssignments bool `json:"redact_assignments"`

	CustomPatterns []string `json:"custom_patterns"`

	Replacement string `json:"replacement"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		RedactTokens:         true,
		RedactURLCredentials: true,
		RedactAssignments:    true,
		Replacement:          "[REDACTED]",
	}
}

// rule masks capture group 1 of every match, or the whole match when the
// pattern has no groups.
type rule struct {
	name string
	re   *regexp.Regexp
}

var (
	tokenRules = []rule{
		// Telegram bot tokens: "<bot id>:<35 char secret>".
		{"telegram_token", regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{35}`)},
		{"bearer", regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9_\-\.=]{16,})`)},
	}
	urlRules = []rule{
		{"url_password", regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^:/@\s]+:([^@\s]+)@`)},
	}
	assignmentRules = []rule{
		{"assignment", regexp.MustCompile(`(?i)\b(?:token|secret|password|passwd|api[_-]?key|audit[_-]?key)\s*[=:]\s*['"]?([^'"\s,}]{4,})`)},
		{"json_secret", regexp.MustCompile(`"(?:token|secret|password|api_key|key)"\s*:\s*"([^"]+)"`)},
	}

	sensitiveKeys = []string{
		"token", "secret", "password", "passwd", "api_key", "apikey",
		"credential", "private_key", "hmac",
	}
)

type Redactor struct {
	mu     sync.RWMutex
	config Config
	custom []*regexp.Regexp
}

// NewRedactor compiles the custom patterns of config. Invalid patterns are
// skipped.
func NewRedactor(config Config) *Redactor {
	r := &Redactor{config: config}
	for _, pattern := range config.CustomPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			r.custom = append(r.custom, re)
		}
	}
	return r
}

func (r *Redactor) Redact(input string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.config.Enabled || input == "" {
		return input
	}

	out := input
	if r.config.RedactTokens {
		out = r.apply(out, tokenRules)
	}
	if r.config.RedactURLCredentials {
		out = r.apply(out, urlRules)
	}
	if r.config.RedactAssignments {
		out = r.apply(out, assignmentRules)
	}
	for _, re := range r.custom {
		out = re.ReplaceAllString(out, r.config.Replacement)
	}
	return out
}

func (r *Redactor) apply(input string, rules []rule) string {
	for _, rl := range rules {
		re := rl.re
		input = re.ReplaceAllStringFunc(input, func(match string) string {
			sub := re.FindStringSubmatch(match)
			if len(sub) > 1 && sub[1] != "" {
				return strings.Replace(match, sub[1], r.config.Replacement, 1)
			}
			return r.config.Replacement
		})
	}
	return input
}

// RedactFields returns a copy of fields with sensitive keys masked and string
// values redacted. Nested maps are handled recursively.
func (r *Redactor) RedactFields(fields map[string]any) map[string]any {
	r.mu.RLock()
	enabled := r.config.Enabled
	replacement := r.config.Replacement
	r.mu.RUnlock()

	if !enabled || fields == nil {
		return fields
	}

	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSensitiveKey(k) {
			out[k] = replacement
			continue
		}
		switch val := v.(type) {
		case string:
			out[k] = r.Redact(val)
		case error:
			out[k] = r.Redact(val.Error())
		case map[string]any:
			out[k] = r.RedactFields(val)
		default:
			out[k] = v
		}
	}
	return out
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, sk := range sensitiveKeys {
		if strings.Contains(lower, sk) {
			return true
		}
	}
	return false
}

func (r *Redactor) SetEnabled(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config.Enabled = enabled
}

// AddLiteral masks every occurrence of s, e.g. the configured bot token,
// regardless of its shape.
func (r *Redactor) AddLiteral(s string) {
	if s == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = append(r.custom, regexp.MustCompile(regexp.QuoteMeta(s)))
}

func (r *Redactor) AddCustomPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.custom = append(r.custom, re)
	return nil
}

var (
	globalMu       sync.RWMutex
	globalRedactor = NewRedactor(DefaultConfig())
)

func global() *Redactor {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalRedactor
}

func Redact(input string) string {
	return global().Redact(input)
}

func RedactFields(fields map[string]any) map[string]any {
	return global().RedactFields(fields)
}

// AddLiteral registers a literal secret with the global redactor.
func AddLiteral(s string) {
	global().AddLiteral(s)
}

func SetGlobalConfig(config Config) {
	r := NewRedactor(config)
	globalMu.Lock()
	defer globalMu.Unlock()
	globalRedactor = r
}
