package render

import (
	"encoding/json"
	"fmt"

	"github.com/probelens/probelens/pkg/engine"
)

// EncodeJSON serializes a snapshot with stable formatting. The output is
// deterministic for a given snapshot, so its content hash is a valid cache
// key for derived artifacts.
func EncodeJSON(snap engine.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// DecodeJSON parses a snapshot previously written by [EncodeJSON].
func DecodeJSON(data []byte) (engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
