package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "2s" or "500ms" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Profile is the per-terminal screen profile: which stations the screen
// shows and how it presents toasts and insights.
type Profile struct {
	// Stations filters the board to these prep stations; empty shows all.
	Stations []string `yaml:"stations"`
	// ToastDuration is how long toasts stay visible.
	ToastDuration Duration `yaml:"toast_duration"`
	// CORSOrigins are the shells allowed to read the status API.
	CORSOrigins []string `yaml:"cors_origins"`
	// ShowInsights toggles the analytics panel.
	ShowInsights bool `yaml:"show_insights"`
}

// DefaultProfile returns the profile used when no file is configured.
func DefaultProfile() Profile {
	return Profile{
		Stations:      []string{},
		ToastDuration: Duration(5 * time.Second),
		CORSOrigins:   []string{"*"},
		ShowInsights:  true,
	}
}

// LoadProfile reads and validates a YAML screen profile. An empty path
// returns the default profile.
func LoadProfile(path string) (Profile, error) {
	if path == "" {
		return DefaultProfile(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("config: read profile: %w", err)
	}

	profile := DefaultProfile()
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("config: parse profile: %w", err)
	}

	if profile.ToastDuration <= 0 {
		profile.ToastDuration = Duration(5 * time.Second)
	}
	for _, station := range profile.Stations {
		switch station {
		case "kitchen", "bar", "none":
		default:
			return Profile{}, fmt.Errorf("config: unknown station %q in profile", station)
		}
	}
	if len(profile.CORSOrigins) == 0 {
		profile.CORSOrigins = []string{"*"}
	}
	return profile, nil
}
