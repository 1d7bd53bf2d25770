// Package logx wraps zerolog for crosspromo.
//
// Console output is human readable, the file sink writes JSON lines, and
// the optional Telegram sink forwards warnings to the operator log chat
// under a rate limit. Loggers derived from a Service pick up config
// reloads without being rebuilt.
package logx
