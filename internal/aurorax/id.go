package aurorax

import "github.com/google/uuid"

// NewNodeID generates a housekeeping identifier for a node. It is never
// consumed by anything on the seeded-PRNG path, so it does not affect the
// determinism contract in spec §5.
func NewNodeID() string {
	return uuid.NewString()
}
