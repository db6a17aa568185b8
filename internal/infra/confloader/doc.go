// Package confloader loads the node configuration.
//
// Sources, later overriding earlier:
//
//  1. The defaults already present in the target struct
//  2. A YAML configuration file
//  3. CIDMESH_ prefixed environment variables
//  4. Command-line flags, passed in with LoadMap
//
// Environment variables name a section and a key separated by the first
// underscore after the prefix: CIDMESH_CLUSTER_RECEIVER_WORKERS sets
// cluster.receiver_workers.
//
// A Watcher reports changes of the configuration file so that a node can
// reload the settings that take effect at runtime.
package confloader
