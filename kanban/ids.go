package kanban

import (
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a ULID string for a new board, column or card. ULIDs sort by
// creation time, which makes them a stable secondary key for order ties.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// newTabID identifies one session on the broadcast channel.
func newTabID() string {
	return uuid.NewString()
}

func newActionID() string {
	return uuid.NewString()
}
