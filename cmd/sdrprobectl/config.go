package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"sdrprobe/pkg/sdrprobe"
)

func loadRunRequestFromConfig(path string) (sdrprobe.RunRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return sdrprobe.RunRequest{}, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return sdrprobe.RunRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}

	var req sdrprobe.RunRequest
	if v, ok := raw["inputs"]; ok {
		inputs, err := asFloatSlice(v)
		if err != nil {
			return sdrprobe.RunRequest{}, fmt.Errorf("%s: inputs: %w", path, err)
		}
		req.Inputs = inputs
	}
	if v, ok := asFloat64(raw["min_val"]); ok {
		req.MinVal = v
	}
	if v, ok := asFloat64(raw["max_val"]); ok {
		req.MaxVal = v
	}
	if v, ok := asFloat64(raw["step"]); ok {
		req.Step = v
	}
	if v, ok := asInt(raw["encoder_width"]); ok {
		req.EncoderWidth = v
	}
	if v, ok := asInt(raw["encoder_active"]); ok {
		req.EncoderActive = v
	}
	if v, ok := asFloat64(raw["noise"]); ok {
		req.Noise = v
	}
	if v, ok := asString(raw["coder"]); ok {
		req.Coder = v
	}
	if v, ok := asInt(raw["columns"]); ok {
		req.Columns = v
	}
	if v, ok := asInt(raw["active_columns"]); ok {
		req.ActiveColumns = v
	}
	if v, ok := asFloat64(raw["potential_pct"]); ok {
		req.PotentialPct = v
	}
	if v, ok := asInt(raw["coder_stable_cycles"]); ok {
		req.CoderStable = v
	}
	if v, ok := asInt(raw["max_cycles"]); ok {
		req.MaxCycles = v
	}
	if v, ok := asInt(raw["stable_threshold"]); ok {
		req.StableThreshold = v
	}
	if v, ok := raw["matchers"]; ok {
		matchers, err := asStringSlice(v)
		if err != nil {
			return sdrprobe.RunRequest{}, fmt.Errorf("%s: matchers: %w", path, err)
		}
		req.Matchers = matchers
	}
	if v, ok := asInt(raw["knn_neighbours"]); ok {
		req.KNNNeighbours = v
	}
	if v, ok := asBool(raw["shuffle_queries"]); ok {
		req.ShuffleQueries = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	return req, nil
}

func loadOrDefaultRunRequest(configPath string) (sdrprobe.RunRequest, error) {
	if configPath == "" {
		return sdrprobe.RunRequest{}, nil
	}
	return loadRunRequestFromConfig(configPath)
}

// overrideFromFlags copies every explicitly set flag from flagReq into req.
func overrideFromFlags(req *sdrprobe.RunRequest, flagReq sdrprobe.RunRequest, changed func(string) bool) {
	if changed("inputs") {
		req.Inputs = flagReq.Inputs
	}
	if changed("min") {
		req.MinVal = flagReq.MinVal
	}
	if changed("max") {
		req.MaxVal = flagReq.MaxVal
	}
	if changed("step") {
		req.Step = flagReq.Step
	}
	if changed("n") {
		req.EncoderWidth = flagReq.EncoderWidth
	}
	if changed("w") {
		req.EncoderActive = flagReq.EncoderActive
	}
	if changed("noise") {
		req.Noise = flagReq.Noise
	}
	if changed("coder") {
		req.Coder = flagReq.Coder
	}
	if changed("columns") {
		req.Columns = flagReq.Columns
	}
	if changed("active") {
		req.ActiveColumns = flagReq.ActiveColumns
	}
	if changed("potential") {
		req.PotentialPct = flagReq.PotentialPct
	}
	if changed("coder-stable") {
		req.CoderStable = flagReq.CoderStable
	}
	if changed("max-cycles") {
		req.MaxCycles = flagReq.MaxCycles
	}
	if changed("stable-threshold") {
		req.StableThreshold = flagReq.StableThreshold
	}
	if changed("matchers") {
		req.Matchers = flagReq.Matchers
	}
	if changed("knn-k") {
		req.KNNNeighbours = flagReq.KNNNeighbours
	}
	if changed("shuffle") {
		req.ShuffleQueries = flagReq.ShuffleQueries
	}
	if changed("seed") {
		req.Seed = flagReq.Seed
	}
}

func parseInputs(raw string) ([]float64, error) {
	fields := strings.Split(raw, ",")
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid input %q: %w", field, err)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("inputs must list at least one value")
	}
	return out, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

func asFloatSlice(v any) ([]float64, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of numbers, got %T", v)
	}
	out := make([]float64, 0, len(items))
	for i, item := range items {
		f, ok := asFloat64(item)
		if !ok {
			return nil, fmt.Errorf("element %d: expected a number, got %v", i, item)
		}
		out = append(out, f)
	}
	return out, nil
}

func asStringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings, got %T", v)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("element %d: expected a string, got %v", i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
