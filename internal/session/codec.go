package session

import (
	"encoding/json"
	"fmt"

	"atbat/internal/types"
)

func encodeSwing(sw *types.Swing) ([]byte, error) {
	if sw == nil {
		return nil, nil
	}
	b, err := json.Marshal(sw)
	if err != nil {
		return nil, fmt.Errorf("encoding last swing: %w", err)
	}
	return b, nil
}

func decodeSwing(b []byte) (*types.Swing, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var sw types.Swing
	if err := json.Unmarshal(b, &sw); err != nil {
		return nil, fmt.Errorf("decoding last swing: %w", err)
	}
	return &sw, nil
}
