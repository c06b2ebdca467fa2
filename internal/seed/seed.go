// Package seed loads demo conversation-index entries from a YAML file at
// startup, replacing the teacher's Postgres-backed LLM seeder (which has
// no analogue here — there is no database) with a file-based seed of the
// in-memory ConversationIndex.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"bubblestream/internal/bubble"
)

// File is the on-disk shape of a seed file: a per-user map of
// conversation entries, e.g.:
//
//	users:
//	  u1:
//	    - id: c1
//	      title: "First chat"
//	      updatedAt: 1700000000000
type File struct {
	Users map[string][]bubble.ConversationEntry `yaml:"users"`
}

// LoadFile parses path and applies every user's entries to index. A
// missing path is not an error — seeding is optional demo convenience.
func LoadFile(path string, index *bubble.ConversationIndex) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing seed file: %w", err)
	}

	for userID, entries := range f.Users {
		if err := index.Set(userID, entries); err != nil {
			return fmt.Errorf("seeding user %q: %w", userID, err)
		}
	}
	return nil
}
