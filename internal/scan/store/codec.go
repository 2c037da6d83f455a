package store

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"luftscan/internal/prior"
	"luftscan/internal/sampler"
	"luftscan/internal/scan"
)

// recordConfig is the JSON document holding the reproducible part of a
// record: priors, observables and fixed inputs.
type recordConfig struct {
	Parameters  []prior.Parameter  `json:"parameters"`
	Observables []string           `json:"observables"`
	Fixed       map[string]float64 `json:"fixed,omitempty"`
}

func encodeConfig(rec *scan.Record) ([]byte, error) {
	data, err := json.Marshal(recordConfig{Parameters: rec.Parameters, Observables: rec.Observables, Fixed: rec.Fixed})
	if err != nil {
		return nil, fmt.Errorf("encode scan config: %w", err)
	}
	return data, nil
}

func decodeConfig(data []byte, rec *scan.Record) error {
	var cfg recordConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("decode scan config: %w", err)
	}
	rec.Parameters = cfg.Parameters
	rec.Observables = cfg.Observables
	rec.Fixed = cfg.Fixed
	return nil
}

// encodeFloats writes a compact, lossless text form. NaN survives the
// round trip, which JSON would reject.
func encodeFloats(v []float64) string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func decodeFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	fields := strings.Fields(s)
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("decode stored value %q: %w", f, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseMethod(s string) sampler.Method {
	m, err := sampler.ParseMethod(s)
	if err != nil {
		return sampler.Method(s)
	}
	return m
}
