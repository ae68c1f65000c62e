package natives

import (
	"fmt"

	"github.com/roach88/rindel/internal/engine"
)

func configString(config map[string]any, key, def string) (string, error) {
	v, ok := config[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("config %q must be a string, got %T", key, v)
	}
	return s, nil
}

func configTempo(config map[string]any, def engine.Tempo) (engine.Tempo, error) {
	s, err := configString(config, "tempo", string(def))
	if err != nil {
		return "", err
	}
	t := engine.Tempo(s)
	if !t.Valid() {
		return "", fmt.Errorf("config \"tempo\" must be step or event, got %q", s)
	}
	return t, nil
}

func checkKeys(config map[string]any, allowed ...string) error {
	for k := range config {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown config key %q", k)
		}
	}
	return nil
}

// toInt converts the integer shapes produced by Go code, YAML and CUE
// decoders. Undefined values count as zero.
func toInt(v engine.Value) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}
