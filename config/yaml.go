package config

import (
	"bytes"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func parseYaml(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

// Duration is a time.Duration parseable from yaml scalars and env values.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("can't decode duration: %w", err)
	}
	return d.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	v, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("can't parse duration %q: %w", value, err)
	}
	*d = Duration(v)
	return nil
}

// Level wraps logrus.Level for yaml and env parsing.
type Level logrus.Level

func (l Level) Level() logrus.Level {
	return logrus.Level(l)
}

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("can't decode log level: %w", err)
	}
	return l.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (l *Level) Decode(value string) error {
	v, err := logrus.ParseLevel(value)
	if err != nil {
		return fmt.Errorf("can't parse log level %q: %w", value, err)
	}
	*l = Level(v)
	return nil
}
