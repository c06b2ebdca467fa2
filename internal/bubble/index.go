package bubble

import (
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"bubblestream/internal/apierror"
)

// ConversationEntry is one row of a user's conversation list.
type ConversationEntry struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	UpdatedAt int64  `json:"updatedAt" yaml:"updatedAt"`
}

// Validate mirrors the teacher's ozzo-validation struct-tag style
// (streaming/service.go's validateCreateTurnRequest).
func (e ConversationEntry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.ID, validation.Required),
		validation.Field(&e.Title, validation.Required),
		validation.Field(&e.UpdatedAt, validation.Required),
	)
}

// ConversationIndex is a per-user, ordered list of conversation summaries
// (C5), maintained entirely by handlers — streaming never updates it.
type ConversationIndex struct {
	mu      sync.RWMutex
	entries map[string][]ConversationEntry
}

func NewConversationIndex() *ConversationIndex {
	return &ConversationIndex{entries: make(map[string][]ConversationEntry)}
}

// NormalizeUserID trims whitespace and falls back to "anonymous".
func NormalizeUserID(userID string) string {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "anonymous"
	}
	return trimmed
}

// Set validates and stores a defensive copy of entries at normalize(userId).
func (c *ConversationIndex) Set(userID string, entries []ConversationEntry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return apierror.NewInvalidConfig(err.Error())
		}
	}
	cp := make([]ConversationEntry, len(entries))
	copy(cp, entries)

	key := NormalizeUserID(userID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cp
	return nil
}

// Get returns a defensive copy of the entries at normalize(userId), or an
// empty slice.
func (c *ConversationIndex) Get(userID string) []ConversationEntry {
	key := NormalizeUserID(userID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	stored := c.entries[key]
	cp := make([]ConversationEntry, len(stored))
	copy(cp, stored)
	return cp
}

// CreateHistoryEntry validates and returns an index entry record, ported
// from the original's create_history(id, title, updatedAt).
func CreateHistoryEntry(id, title string, updatedAt int64) (ConversationEntry, error) {
	e := ConversationEntry{ID: id, Title: title, UpdatedAt: updatedAt}
	if err := e.Validate(); err != nil {
		return ConversationEntry{}, apierror.NewInvalidConfig(err.Error())
	}
	return e, nil
}
