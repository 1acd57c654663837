package esplora

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hexBytes decodes the hex-encoded script fields of the explorer API.
type hexBytes []byte

func (h *hexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hex field: %w", err)
	}

	*h = decoded
	return nil
}
