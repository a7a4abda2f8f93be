// Package prefixed_uuid provides UUID identifiers with a readable type prefix,
// e.g. "session-2f1c...". The prefix makes identifiers self-describing in logs
// and API payloads.
package prefixed_uuid //nolint:revive // var-naming: using underscores for domain clarity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PrefixedUUID represents a UUID with a prefix string.
type PrefixedUUID struct {
	Prefix string
	UUID   uuid.UUID
}

// New creates a new PrefixedUUID with the given prefix and a generated UUID.
func New(prefix string) PrefixedUUID {
	return PrefixedUUID{
		Prefix: prefix,
		UUID:   uuid.New(),
	}
}

// FromString parses a prefixed UUID string in the format "prefix-uuid".
func FromString(s string) (PrefixedUUID, error) {
	idx := strings.Index(s, "-")
	if idx == -1 {
		return PrefixedUUID{}, fmt.Errorf("invalid prefixed UUID format: %s", s)
	}

	parsedUUID, err := uuid.Parse(s[idx+1:])
	if err != nil {
		return PrefixedUUID{}, fmt.Errorf("invalid UUID: %w", err)
	}

	return PrefixedUUID{
		Prefix: s[:idx],
		UUID:   parsedUUID,
	}, nil
}

// IsValid reports whether s parses as a prefixed UUID with the given prefix.
func IsValid(s, prefix string) bool {
	parsed, err := FromString(s)
	if err != nil {
		return false
	}
	return parsed.Prefix == prefix
}

// String implements the fmt.Stringer interface.
// It returns the prefixed UUID in the format "prefix-uuid".
func (p PrefixedUUID) String() string {
	return fmt.Sprintf("%s-%s", p.Prefix, p.UUID.String())
}

// IsZero returns true if the PrefixedUUID is uninitialized (zero value).
func (p PrefixedUUID) IsZero() bool {
	return p.Prefix == "" && p.UUID == uuid.Nil
}

// MarshalJSON implements json.Marshaler.
func (p PrefixedUUID) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PrefixedUUID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid JSON string format: %w", err)
	}

	parsed, err := FromString(s)
	if err != nil {
		return err
	}

	*p = parsed
	return nil
}
