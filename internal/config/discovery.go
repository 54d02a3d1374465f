package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"
)

// LoadDiscovery reads the service-discovered store override. The file is
// JSON with comments and trailing commas allowed. A missing path yields an
// empty override.
func LoadDiscovery(path string) (StoreOverride, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return StoreOverride{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return StoreOverride{}, nil
		}
		return StoreOverride{}, fmt.Errorf("read discovery file %q: %w", path, err)
	}
	var out StoreOverride
	if err := json.Unmarshal(jsonc.ToJSON(raw), &out); err != nil {
		return StoreOverride{}, fmt.Errorf("parse discovery file %q: %w", path, err)
	}
	return out, nil
}
