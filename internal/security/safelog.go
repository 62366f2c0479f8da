package security

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wheel-trader/internal/errors"
)

const redacted = "[REDACTED]"

// sensitiveFields contains field names whose values never reach a log.
var sensitiveFields = map[string]bool{
	"password":       true,
	"token":          true,
	"session_token":  true,
	"session-token":  true,
	"remember_token": true,
	"authorization":  true,
	"secret":         true,
	"credential":     true,
	"credentials":    true,
}

// secretPairs matches key/value pairs such as password=x, "session-token":"x"
// or Authorization: x. Group 1 keeps the key and separator.
var secretPairs = regexp.MustCompile(`(?i)("?(?:session[_-]?token|remember[_-]?token|authorization|password|secret)"?\s*[=:]\s*"?)([^\s"',}&]+)`)

// Redact replaces secret values in key/value text with [REDACTED].
func Redact(input string) string {
	return secretPairs.ReplaceAllString(input, "${1}"+redacted)
}

// SafeLogger wraps zerolog.Logger and scrubs secrets from string fields,
// errors and messages. Known secrets (the brokerage password, the live
// session token) are removed wherever they appear, not only after a key.
type SafeLogger struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	secrets []string
}

// NewSafeLogger creates a safe logger that scrubs the given secrets.
func NewSafeLogger(logger zerolog.Logger, secrets ...string) *SafeLogger {
	sl := &SafeLogger{logger: logger}
	for _, s := range secrets {
		sl.AddSecret(s)
	}
	return sl
}

// AddSecret registers a literal value to scrub. Empty values are ignored.
func (sl *SafeLogger) AddSecret(secret string) {
	if secret == "" {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	for _, s := range sl.secrets {
		if s == secret {
			return
		}
	}
	sl.secrets = append(sl.secrets, secret)
}

// Redact removes registered secrets and secret key/value pairs from input.
func (sl *SafeLogger) Redact(input string) string {
	sl.mu.RLock()
	for _, s := range sl.secrets {
		input = strings.ReplaceAll(input, s, redacted)
	}
	sl.mu.RUnlock()
	return Redact(input)
}

// RedactError returns err with secrets scrubbed from its message. Errors
// without secrets are returned unchanged.
func (sl *SafeLogger) RedactError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if clean := sl.Redact(msg); clean != msg {
		return errors.New(clean)
	}
	return err
}

// Debug starts a debug event.
func (sl *SafeLogger) Debug() *SafeEvent {
	return &SafeEvent{sl: sl, event: sl.logger.Debug()}
}

// Info starts an info event.
func (sl *SafeLogger) Info() *SafeEvent {
	return &SafeEvent{sl: sl, event: sl.logger.Info()}
}

// Warn starts a warning event.
func (sl *SafeLogger) Warn() *SafeEvent {
	return &SafeEvent{sl: sl, event: sl.logger.Warn()}
}

// SafeEvent wraps zerolog.Event and scrubs what is added to it.
type SafeEvent struct {
	sl    *SafeLogger
	event *zerolog.Event
}

// Str adds a string field. Sensitive field names are always redacted.
func (se *SafeEvent) Str(key, val string) *SafeEvent {
	if sensitiveFields[strings.ToLower(key)] {
		se.event = se.event.Str(key, redacted)
	} else {
		se.event = se.event.Str(key, se.sl.Redact(val))
	}
	return se
}

// Int adds an integer field.
func (se *SafeEvent) Int(key string, val int) *SafeEvent {
	se.event = se.event.Int(key, val)
	return se
}

// Time adds a time field.
func (se *SafeEvent) Time(key string, t time.Time) *SafeEvent {
	se.event = se.event.Time(key, t)
	return se
}

// Dur adds a duration field.
func (se *SafeEvent) Dur(key string, d time.Duration) *SafeEvent {
	se.event = se.event.Dur(key, d)
	return se
}

// Err adds an error field with secrets scrubbed from its message.
func (se *SafeEvent) Err(err error) *SafeEvent {
	if err != nil {
		se.event = se.event.Err(se.sl.RedactError(err))
	}
	return se
}

// Msg sends the event.
func (se *SafeEvent) Msg(msg string) {
	se.event.Msg(se.sl.Redact(msg))
}
