package main

import (
	"fmt"
	"strings"

	"github.com/robert-malhotra/go-nwbconv/metadata"
)

// parsePairs turns key=value arguments into a map. Values follow YAML
// rules, so numbers and booleans keep their type.
func parsePairs(pairs []string) (map[string]any, error) {
	out := map[string]any{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", p)
		}
		out[k] = metadata.ParseValue(v)
	}
	return out, nil
}

// applyPairs sets dotted key=value paths in md.
func applyPairs(md metadata.Metadata, pairs []string) error {
	values, err := parsePairs(pairs)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		k, _, _ := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if err := md.SetPath(k, values[k]); err != nil {
			return err
		}
	}
	return nil
}
