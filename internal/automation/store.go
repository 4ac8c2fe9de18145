package automation

import (
	"fmt"

	"github.com/sweeney/widget-sync/internal/storage"
)

// Store persists the rule record at a fixed address of a storage image.
type Store struct {
	blocks storage.Blocks
	base   int
	limit  int
}

// NewStore creates a Store writing at base. limit caps the record size in
// bytes; a non-positive limit allows the rest of a default-sized image.
func NewStore(blocks storage.Blocks, base, limit int) *Store {
	if limit <= 0 {
		limit = storage.DefaultSize - base
	}
	return &Store{blocks: blocks, base: base, limit: limit}
}

// Load reads the stored rule. On any error the returned rule is disabled and
// the error is one of ErrNoRecord, ErrCorrupt or a storage error.
func (s *Store) Load() (Rule, error) {
	header, err := s.blocks.ReadBlock(s.base, headerSize)
	if err != nil {
		return Rule{}, fmt.Errorf("read rule header: %w", err)
	}
	n, err := recordLength(header)
	if err != nil {
		return Rule{}, err
	}
	if n > s.limit {
		return Rule{}, fmt.Errorf("%w: record length %d exceeds %d", ErrCorrupt, n, s.limit)
	}
	b, err := s.blocks.ReadBlock(s.base, n)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return UnmarshalRecord(b)
}

// Save writes the full record, marker included, and commits it.
func (s *Store) Save(r Rule) error {
	b, err := MarshalRecord(r, s.limit)
	if err != nil {
		return err
	}
	if err := s.blocks.WriteBlock(s.base, b); err != nil {
		return fmt.Errorf("write rule: %w", err)
	}
	if err := s.blocks.Commit(); err != nil {
		return fmt.Errorf("commit rule: %w", err)
	}
	return nil
}
