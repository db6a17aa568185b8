package clusterserver

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// GossipKeyLen is the length of keys returned by DeriveGossipKey (AES-256).
const GossipKeyLen = 32

var gossipKeyInfo = []byte("cidmesh memberlist gossip v1")

// DeriveGossipKey derives the memberlist encryption key from a shared
// secret. Every node configured with the same secret derives the same key.
func DeriveGossipKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("clusterserver: gossip secret is empty")
	}
	key := make([]byte, GossipKeyLen)
	r := hkdf.New(sha256.New, []byte(secret), nil, gossipKeyInfo)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
