package id

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New generates a new ULID string. ULIDs sort lexicographically by creation
// time, which the notification index and connection ids rely on.
func New() string {
	return NewAt(time.Now())
}

// NewAt generates a ULID whose timestamp component is t. Ids generated within
// the same millisecond are strictly increasing.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
