// Package command provides the command definitions of cidmesh-node.
//
// It uses urfave/cli/v2 for command parsing. The run command starts a
// node, the remaining commands talk to the admin API of a running node or
// inspect a configuration file:
//
//	cidmesh-node run --config /etc/cidmesh/node.yaml
//	cidmesh-node status --admin 127.0.0.1:9102
//	cidmesh-node nodes -o json
//	cidmesh-node config check --config /etc/cidmesh/node.yaml
package command
