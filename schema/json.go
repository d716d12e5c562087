package schema

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the dtype as its stable lowercase name, the
// form persisted in catalog schema records.
func (t DType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("schema: cannot marshal invalid dtype %d", uint8(t))
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON decodes a stable lowercase type name.
func (t *DType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	dt, ok := DTypeFromString(s)
	if !ok {
		return fmt.Errorf("schema: unknown dtype %q", s)
	}
	*t = dt
	return nil
}
