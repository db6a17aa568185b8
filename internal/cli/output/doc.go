// Package output renders command results for cidmesh-node.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned tables
//   - json.go, yaml.go: machine-readable output
package output
