// Package id provides identifier generation for render jobs and sessions.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: job-<timestamp>-<random>
// Example: job-1701432000-a1b2c3d4
func Generate() string {
	timestamp := time.Now().Unix()
	random := make([]byte, 4)
	if _, err := rand.Read(random); err != nil {
		// uuid has its own entropy source
		return fmt.Sprintf("job-%d-%s", timestamp, uuid.NewString()[:8])
	}
	return fmt.Sprintf("job-%d-%s", timestamp, hex.EncodeToString(random))
}

// Session creates a new session ID (a random UUID).
func Session() string {
	return uuid.NewString()
}

// ValidSession reports whether s is a well-formed session ID.
func ValidSession(s string) bool {
	return uuid.Validate(s) == nil
}
