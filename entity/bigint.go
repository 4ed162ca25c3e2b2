package entity

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BigintPrefix tags 64-bit integers in persisted payloads. The durable
// stores hold JSON, and JSON numbers above 2^53 would be silently rounded
// by any non-Go reader of the same blobs.
const BigintPrefix = "BIGINT::"

// BigUint is a uint64 that survives a JSON round trip through the
// persistence layer, encoded as a "BIGINT::<decimal>" string. Plain JSON
// numbers and untagged numeric strings are accepted on decode for
// compatibility with older payloads.
type BigUint uint64

func (v BigUint) Uint64() uint64 {
	return uint64(v)
}

func (v BigUint) MarshalJSON() ([]byte, error) {
	return json.Marshal(BigintPrefix + strconv.FormatUint(uint64(v), 10))
}

func (v *BigUint) UnmarshalJSON(blob []byte) error {
	var raw interface{}
	if err := json.Unmarshal(blob, &raw); err != nil {
		return fmt.Errorf("can't unmarshal bigint: %w", err)
	}
	switch t := raw.(type) {
	case string:
		parsed, err := strconv.ParseUint(strings.TrimPrefix(t, BigintPrefix), 10, 64)
		if err != nil {
			return fmt.Errorf("can't parse bigint %q: %w", t, err)
		}
		*v = BigUint(parsed)
		return nil
	case float64:
		*v = BigUint(uint64(t))
		return nil
	default:
		return fmt.Errorf("unexpected bigint shape %T", raw)
	}
}
