// Package config provides the node configuration for cidmesh.
//
// This package defines the configuration structure and validation:
//
//   - spec.go: ServerConfig struct definition
//   - default.go: Default configuration values
//   - verify.go: Validation (addresses, ranges, discovery mode requirements)
//   - sanitize.go: Log sanitization (hide sensitive values)
//   - cluster.go: Mapping to clusterserver.Config and discovery sources
//
// Configuration is loaded via internal/infra/confloader from a YAML file and
// CIDMESH_ prefixed environment variables.
package config
