// Package idhash computes deterministic identifiers.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(contract|sequence|action|sender|timestamp)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	contract string,
	sequence uint64,
	action string,
	sender string,
	timestamp int64,
) string {
	data := fmt.Sprintf("%s|%d|%s|%s|%d",
		contract,
		sequence,
		action,
		sender,
		timestamp,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
