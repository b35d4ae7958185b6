package sqlite

import "encoding/json"

// encodeConfig/decodeConfig round-trip Project.Config through the opaque
// TEXT column the global projects table stores it in.
func encodeConfig(cfg map[string]string) (string, error) {
	if len(cfg) == 0 {
		return "", nil
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeConfig(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var out map[string]string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
