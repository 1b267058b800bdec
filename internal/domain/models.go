package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain contains core models and errors shared by the mirror pipeline.

// DefaultIntervalMinutes is used when no positive poll interval is configured.
const DefaultIntervalMinutes = 30

// BotConfiguration is the operating configuration of the mirror bot.
type BotConfiguration struct {
	Accounts        []string `json:"accounts" yaml:"accounts"`
	IntervalMinutes int      `json:"interval_minutes" yaml:"interval_minutes"`
	SigningKey      string   `json:"signing_key" yaml:"signing_key"`
	Endpoints       []string `json:"endpoints" yaml:"endpoints"`
}

// Clone returns a deep copy of the configuration.
func (c BotConfiguration) Clone() BotConfiguration {
	c.Accounts = append([]string(nil), c.Accounts...)
	c.Endpoints = append([]string(nil), c.Endpoints...)
	return c
}

// Interval returns the poll interval in units of unit, falling back to the default.
func (c BotConfiguration) Interval(unit time.Duration) time.Duration {
	minutes := c.IntervalMinutes
	if minutes <= 0 {
		minutes = DefaultIntervalMinutes
	}
	return time.Duration(minutes) * unit
}

// CandidatePost is a post returned by a content fetcher, not yet known to be new.
// Link is the canonical source link and the dedup key; ID depends on the extraction
// strategy and must not be used for dedup.
type CandidatePost struct {
	ID       string `json:"id"`
	Account  string `json:"account"`
	MediaURL string `json:"media_url"`
	Caption  string `json:"caption"`
	Link     string `json:"link"`
}

// BotStatus is the scheduler's status snapshot.
type BotStatus struct {
	IsRunning     bool       `json:"is_running"`
	LastRun       *time.Time `json:"last_run"`
	LastPostCount int        `json:"last_post_count"`
	LastError     *string    `json:"last_error"`
}

// Clone returns a copy that shares no pointers with s.
func (s BotStatus) Clone() BotStatus {
	if s.LastRun != nil {
		t := *s.LastRun
		s.LastRun = &t
	}
	if s.LastError != nil {
		e := *s.LastError
		s.LastError = &e
	}
	return s
}

// LogLevel is the severity of a LogEntry.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one line of the bot's activity log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
}

var (
	ErrMissingSigningKey = errors.New("signing key not configured")
	ErrNoAccounts        = errors.New("no accounts configured")
	ErrNoEndpoints       = errors.New("no destination endpoints configured")
	ErrInvalidInterval   = errors.New("poll interval must be a positive number of minutes")
)

// ConfigurationError reports a configuration problem that prevents a cycle from running.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SystemError reports an unexpected failure inside a cycle, including recovered panics.
type SystemError struct {
	Err error
}

func (e *SystemError) Error() string {
	return fmt.Sprintf("system error: %v", e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }
