package mcpserver

import (
	"encoding/json"
	"fmt"
)

// parseJSON parses a JSON string into the target type.
func parseJSON(data string, target any) error {
	return json.Unmarshal([]byte(data), target)
}

// parsePoints reads a stroke given as [[x,y], ...] or [{"x":..,"y":..}, ...].
func parsePoints(data string) ([][2]float64, error) {
	var pairs [][2]float64
	if err := parseJSON(data, &pairs); err == nil {
		return pairs, nil
	}
	var objs []struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := parseJSON(data, &objs); err != nil {
		return nil, fmt.Errorf("points must be a JSON array of [x,y] pairs: %w", err)
	}
	pairs = make([][2]float64, len(objs))
	for i, p := range objs {
		pairs[i] = [2]float64{p.X, p.Y}
	}
	return pairs, nil
}

// numberArg returns args[key] when it is a JSON number.
func numberArg(args map[string]any, key string) (float64, bool) {
	v, ok := args[key].(float64)
	return v, ok
}
