// Package bubbleid provides the identifier and clock utilities described as
// C1 in the bubble streaming runtime: bubble/session/stream ids and
// millisecond/ISO-8601 timestamps, plus a per-stream monotonic sequence
// counter.
package bubbleid

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

// New mints an opaque bubble or stream id. Grounded on the teacher's use of
// uuid.New().String() for turn/chat ids.
func New() string {
	return uuid.New().String()
}

// NewConversationID mints a conversation id for server-originated
// conversations. It uses shortuuid rather than a raw UUID so that
// server-minted ids are visually distinguishable from client-supplied ones
// in logs and demo traffic.
func NewConversationID() string {
	return shortuuid.New()
}

// NowISO returns the current time as an ISO-8601/RFC3339 string with
// millisecond precision, used for Bubble.createdAt.
func NowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// NowMillis returns the current time in Unix milliseconds, used for
// conversation-index updatedAt fields.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// SeqCounter is a strictly increasing, gap-free sequence counter starting
// at 0, one per stream sink.
type SeqCounter struct {
	next atomic.Uint64
}

// Next returns the next sequence value, starting at 0.
func (c *SeqCounter) Next() uint64 {
	return c.next.Add(1) - 1
}
