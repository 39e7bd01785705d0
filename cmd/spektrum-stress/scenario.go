package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario describes a test run in a reusable file, so recurring load
// profiles do not live in shell history. Zero fields keep the flag values.
type Scenario struct {
	Mode     string    `yaml:"mode"`
	Host     string    `yaml:"host"`
	Lobbies  int       `yaml:"lobbies"`
	Players  int       `yaml:"players"`
	Rounds   int       `yaml:"rounds"`
	Duration duration  `yaml:"duration"`
	JoinCode string    `yaml:"join_code"`
	Rate     float64   `yaml:"rate"`
	Think    thinkTime `yaml:"think"`
}

// thinkTime bounds the simulated delay before a bot answers a question.
type thinkTime struct {
	Min duration `yaml:"min"`
	Max duration `yaml:"max"`
}

// duration decodes yaml strings like "250ms" or "1m30s".
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = duration(parsed)
	return nil
}

func loadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) applyTo(cfg *Config) {
	if s.Mode != "" {
		cfg.mode = s.Mode
	}
	if s.Host != "" {
		cfg.host = s.Host
	}
	if s.Lobbies > 0 {
		cfg.lobbies = s.Lobbies
	}
	if s.Players > 0 {
		cfg.players = s.Players
	}
	if s.Rounds > 0 {
		cfg.rounds = s.Rounds
	}
	if s.Duration > 0 {
		cfg.duration = time.Duration(s.Duration)
	}
	if s.JoinCode != "" {
		cfg.joinCode = s.JoinCode
	}
	if s.Rate > 0 {
		cfg.rate = s.Rate
	}
	if s.Think.Min > 0 {
		cfg.thinkMin = time.Duration(s.Think.Min)
	}
	if s.Think.Max > 0 {
		cfg.thinkMax = time.Duration(s.Think.Max)
	}
}
