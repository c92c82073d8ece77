package config

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Target is a browser the prefixing pass must support.
type Target struct {
	Engine  string
	Version *semver.Version
}

func (t Target) String() string {
	return t.Engine + " " + t.Version.Original()
}

// knownEngines lists the browser names accepted in targets.
var knownEngines = map[string]string{
	"chrome":  "chrome",
	"edge":    "edge",
	"firefox": "firefox",
	"ff":      "firefox",
	"ie":      "ie",
	"ios":     "ios",
	"ios_saf": "ios",
	"opera":   "opera",
	"safari":  "safari",
}

// ParseTargets parses entries of the form "safari 11", "safari11" or
// "safari@11.1". Versions follow semver with missing minor/patch allowed.
func ParseTargets(raw []string) ([]Target, error) {
	targets := make([]Target, 0, len(raw))

	for _, entry := range raw {
		t, err := parseTarget(entry)
		if err != nil {
			return nil, &ConfigurationError{Field: "targets", Reason: err.Error()}
		}

		targets = append(targets, t)
	}

	return targets, nil
}

func parseTarget(entry string) (Target, error) {
	s := strings.ToLower(strings.TrimSpace(entry))

	name, ver := splitTarget(s)
	if name == "" || ver == "" {
		return Target{}, fmt.Errorf("invalid target %q: want <browser> <version>", entry)
	}

	engine, ok := knownEngines[name]
	if !ok {
		return Target{}, fmt.Errorf("invalid target %q: unknown browser %q", entry, name)
	}

	v, err := semver.NewVersion(ver)
	if err != nil {
		return Target{}, fmt.Errorf("invalid target %q: %w", entry, err)
	}

	return Target{Engine: engine, Version: v}, nil
}

// splitTarget separates the browser name from its version.
func splitTarget(s string) (string, string) {
	if i := strings.IndexAny(s, " @"); i >= 0 {
		return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:])
	}

	i := strings.IndexAny(s, "0123456789")
	if i <= 0 {
		return s, ""
	}

	return s[:i], s[i:]
}
