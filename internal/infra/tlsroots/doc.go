// Package tlsroots builds the trust roots used by outbound TLS clients, such as
// the Kubernetes API client of the discovery source.
package tlsroots
