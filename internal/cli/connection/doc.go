// Package connection is the client of the node admin HTTP endpoint.
package connection
