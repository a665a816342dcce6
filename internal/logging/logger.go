// Package logging is the structured logging surface of lexisync. Services,
// stores, upstream clients and the HTTP layer log through Logger and never
// touch log/slog directly; New and Nop build the slog-backed implementation.
package logging

import "context"

// Logger writes leveled records with alternating key/value attributes:
//
//	logger.Info(ctx, "sync merged", "user", "alice", "decks", 12)
//	logger.Warn(ctx, "kv read failed, treating as missing", "key", "user:alice", "status", 503)
//
// Components take a child from With at construction, tagging every record
// with its "module": storage, sync, users or http_server.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for degraded paths that still answer the request, such as a
	// remote store read treated as a miss.
	Warn(ctx context.Context, msg string, args ...any)
	// Error is for failures answered with a 5xx, and for failures logged in
	// place of a returned error, like a failed file store flush.
	Error(ctx context.Context, msg string, args ...any)
	With(args ...any) Logger
}
