// Package logger builds the structured logger of a cidmesh node.
//
//   - logger.go: log/slog handler setup and the runtime log level
//   - redact.go: masking of credentials in log attributes
//
// The node logs JSON by default. The level can be changed at runtime, which
// the node does when log.level changes in the watched configuration file.
package logger
