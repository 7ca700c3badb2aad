package main

import (
	"fmt"
	"os"

	"github.com/xynqdb/xynq/internal/config"
)

// loadConfig builds the effective Config for a run: the file at path,
// overlaid with --set key=value overrides, overlaid in turn with
// listens (if any) as a single list-valued tcp.bind key.
//
// A missing file at the default path is tolerated (an empty Config),
// since nothing forces an operator to have a config file at all if
// every setting they need comes from flags; a missing file at an
// explicitly-requested path (via --config or XYNQD_CONFIG) is an
// error, since silently ignoring a typo'd path would be worse than
// failing loudly.
func loadConfig(path string, explicit bool, sets []string, listens []string) (*config.Config, error) {
	base := config.New()
	if _, err := os.Stat(path); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("xynqd: reading config %q: %w", path, err)
		}
	} else {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("xynqd: parsing config %q: %w", path, err)
		}
		base = loaded
	}

	overrides, err := config.LoadFromOverrides(sets)
	if err != nil {
		return nil, fmt.Errorf("xynqd: parsing --set overrides: %w", err)
	}
	merged := config.Merge(base, overrides)

	if len(listens) > 0 {
		vals := make([]config.Value, len(listens))
		for i, addr := range listens {
			vals[i] = config.StringValue(addr)
		}
		listenCfg := config.New()
		listenCfg.Set("tcp.bind", vals)
		merged = config.Merge(merged, listenCfg)
	}

	return merged, nil
}
