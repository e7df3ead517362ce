package store

import (
	"encoding/json"
	"fmt"

	"jee-solver/api/internal/conversation"
)

// decodeContext unmarshals a stored context. A corrupt record is a decode
// error, never ErrNotFound.
func decodeContext(key string, raw []byte) (*conversation.Context, error) {
	var c conversation.Context
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", key, err)
	}
	return &c, nil
}
