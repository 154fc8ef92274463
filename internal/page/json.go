package page

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Map flattens Extra next to title and private.
func (m Metadata) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+2)
	maps.Copy(out, m.Extra)
	out["title"] = m.Title
	out["private"] = m.Private
	return out
}

// MetadataFromMap is the inverse of Map. title must be a string and private,
// when present, a boolean.
func MetadataFromMap(raw map[string]any) (Metadata, error) {
	return fromMap(raw)
}

// MarshalJSON encodes Map.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON is the inverse of MarshalJSON. A missing title decodes as
// empty so that callers can report it.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: metadata must be an object", ErrFormat)
	}
	if _, ok := raw["title"]; !ok {
		raw["title"] = ""
	}
	out, err := fromMap(raw)
	if err != nil {
		return err
	}
	*m = out
	return nil
}
