package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/restage/internal/ir"
	"github.com/roach88/restage/internal/queryir"
)

// ParamColumn is the storage column for a parameter name. The prefix keeps
// parameters such as "seed" or "count" apart from the fixed columns.
func ParamColumn(name string) string {
	return "p_" + name
}

// StorageName derives the record table name for a descriptor id.
func StorageName(tableID string) (string, error) {
	name := "records_" + strings.ReplaceAll(tableID, "-", "")
	if !queryir.ValidIdentifier(name) {
		return "", ir.Configuration("store.storage", "table id %q cannot name a storage table", tableID)
	}
	return name, nil
}

// ValidateParameterNames rejects names that cannot become columns.
func ValidateParameterNames(names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if !queryir.ValidIdentifier(ParamColumn(n)) {
			return ir.Configuration("store.columns", "parameter name %q is not a valid identifier", n)
		}
		if seen[n] {
			return ir.Configuration("store.columns", "parameter name %q repeated", n)
		}
		seen[n] = true
	}
	return nil
}

// marshalNames serializes parameter names to canonical JSON.
func marshalNames(names []string) (string, error) {
	data, err := ir.MarshalCanonical(names)
	if err != nil {
		return "", fmt.Errorf("marshal parameter names: %w", err)
	}
	return string(data), nil
}

func unmarshalNames(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal parameter names: %w", err)
	}
	return names, nil
}

// marshalTolerance serializes tolerance windows to canonical JSON.
func marshalTolerance(tol map[string]float64) (string, error) {
	if tol == nil {
		tol = map[string]float64{}
	}
	data, err := ir.MarshalCanonical(tol)
	if err != nil {
		return "", fmt.Errorf("marshal tolerance: %w", err)
	}
	return string(data), nil
}

func unmarshalTolerance(data string) (map[string]float64, error) {
	tol := map[string]float64{}
	if data == "" {
		return tol, nil
	}
	if err := json.Unmarshal([]byte(data), &tol); err != nil {
		return nil, fmt.Errorf("unmarshal tolerance: %w", err)
	}
	return tol, nil
}

// valueParam binds a parameter value with its own storage class.
func valueParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.Int:
		return int64(val), nil
	case ir.Float:
		return float64(val), nil
	case ir.Str:
		return string(val), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// scannedValue converts a scanned column back into a Value.
func scannedValue(raw any) (ir.Value, bool) {
	switch val := raw.(type) {
	case int64:
		return ir.Int(val), true
	case float64:
		return ir.Float(val), true
	case string:
		return ir.Str(val), true
	case []byte:
		return ir.Str(string(val)), true
	default:
		return nil, false
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}
