package plugin

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrInvalidConfig is returned when plugin settings do not match the
// manifest's config schema.
var ErrInvalidConfig = errors.New("invalid plugin config")

// ValidateConfig checks config against the manifest's configSchema. Plugins
// without a schema accept anything; a missing config is validated as {}.
func (p *Plugin) ValidateConfig(config json.RawMessage) error {
	if len(p.Manifest.ConfigSchema) == 0 {
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(p.Manifest.ConfigSchema, &schema); err != nil {
		return fmt.Errorf("plugin %s: bad config schema: %w", p.Manifest.Name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return fmt.Errorf("plugin %s: bad config schema: %w", p.Manifest.Name, err)
	}

	var instance any = map[string]any{}
	if len(config) > 0 {
		if err := json.Unmarshal(config, &instance); err != nil {
			return fmt.Errorf("%w: plugin %s: %v", ErrInvalidConfig, p.Manifest.Name, err)
		}
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: plugin %s: %v", ErrInvalidConfig, p.Manifest.Name, err)
	}
	return nil
}
