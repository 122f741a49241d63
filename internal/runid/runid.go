// Package runid generates the opaque identifiers this system requires:
// ULIDs for run/node-scoped IDs (externally visible, sortable by
// creation time) and a distinct UUID space for RunGroup IDs at the driver
// layer, since every identifier in this system is an opaque string.
package runid

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var entropy = ulid.Monotonic(rand.Reader, 0)

// New returns a new ULID-based identifier for a run or node.
func New() string {
	return ulid.MustNew(ulid.Now(), entropy).String()
}

// NewRunGroupID returns a new UUID for RunGroup.id, a distinct identifier
// space from the ULID-based run/node/artifact IDs.
func NewRunGroupID() string {
	return uuid.NewString()
}
