// Package config provides yaml scalar types shared by the service configs.
package config

import (
	"fmt"
	"time"
)

type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	err := unmarshal(&s)
	if err != nil {
		return err
	}

	duration, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("couldn't parse duration: %w", err)
	}

	*d = Duration(duration)
	return nil
}

func (d *Duration) Duration() time.Duration {
	return time.Duration(*d)
}

// Or returns the duration, or fallback when unset.
func (d *Duration) Or(fallback time.Duration) time.Duration {
	if d == nil || *d == 0 {
		return fallback
	}
	return time.Duration(*d)
}
