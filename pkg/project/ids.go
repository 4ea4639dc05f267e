package project

import (
	"crypto/rand"
	"fmt"
	"time"
)

// NewEntityID generates a client-side identifier for epics, stories, tasks and
// events: millisecond timestamp plus a short random suffix to survive
// same-millisecond creation bursts.
func NewEntityID() string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix) // rand.Read never fails on supported platforms
	return fmt.Sprintf("%d-%x", time.Now().UnixMilli(), suffix)
}
