// Package logging wraps log/slog with the attribute helpers and field
// conventions used throughout the translation engine. Components receive a
// child logger tagged with their name; structured fields carry job ids and
// event types so log streams can be correlated with emitted notifications.
package logging
