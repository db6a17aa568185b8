// Package handler implements the admin HTTP API of a cidmesh node.
package handler
