// Package logging provides structured logging for Fleet Core.
//
// It wraps the standard library's log/slog with configuration-driven
// setup and default fields shared by every log line (service, version).
// Components derive their own loggers with With to attach a component
// field, so log lines can be filtered per subsystem.
//
// Output format (JSON or text), destination, and level come from the
// logging section of config.yaml.
package logging
