package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML files can say "500ms" or "2s".
// A bare number is read as seconds.
type Duration struct {
	time.Duration
}

// DurationFrom creates a Duration from a time.Duration.
func DurationFrom(d time.Duration) Duration {
	return Duration{Duration: d}
}

// MarshalYAML emits the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML accepts a duration string or numeric seconds.
func (d *Duration) UnmarshalYAML(value func(any) error) error {
	var raw any
	if err := value(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		if v == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		d.Duration = parsed
	case int:
		d.Duration = time.Duration(v) * time.Second
	case float64:
		d.Duration = time.Duration(v * float64(time.Second))
	default:
		return fmt.Errorf("unsupported duration type %T", raw)
	}
	return nil
}

// IsZero reports whether the duration is zero.
func (d Duration) IsZero() bool {
	return d.Duration == 0
}
