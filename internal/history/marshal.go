package history

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/incr/internal/fingerprint"
)

// marshalSnapshot converts a Snapshot to canonical JSON TEXT for storage.
func marshalSnapshot(s fingerprint.Snapshot) (string, error) {
	data, err := fingerprint.MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(data), nil
}

// unmarshalSnapshot parses canonical JSON TEXT into a Snapshot.
func unmarshalSnapshot(data string) (fingerprint.Snapshot, error) {
	if data == "" || data == "{}" {
		return fingerprint.EmptySnapshot(), nil
	}
	var s fingerprint.Snapshot
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return fingerprint.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return s, nil
}
