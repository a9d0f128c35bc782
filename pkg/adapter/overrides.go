package adapter

import (
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/mitchellh/mapstructure"
)

// Overrides is implemented by the per-family structures listing the transaction parameters a caller may override.
// Each family rejects override types it does not recognize.
type Overrides interface {
	Platform() chains.Platform
}

// DecodeOverrides fills out from a loosely typed map, e.g. one read from a config file or a JSON request.
// Keys that do not correspond to a field of out are rejected.
func DecodeOverrides(raw map[string]interface{}, out Overrides) error {
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := d.Decode(raw); err != nil {
		return fmt.Errorf("invalid %s overrides: %w", out.Platform(), err)
	}
	return nil
}

// UnsupportedOverrides is returned by a family that is handed another family's overrides.
func UnsupportedOverrides(chain chains.ID, o Overrides) error {
	return fmt.Errorf("%s does not accept %T overrides", chain, o)
}
