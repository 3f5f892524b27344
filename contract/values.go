package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/Nikpro200125/orchestrator/libsl"
	"github.com/pkg/errors"
)

// Values are plain JSON shapes: int64, float64, bool, string, nil,
// []any and map[string]any.

// normalize converts decoded JSON into interpreter values. Numbers decoded
// with UseNumber become int64 when integral.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = normalize(t[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	}
	return v
}

// parseScalar converts a path or query string to the class of the
// declared type.
func parseScalar(raw string, class string) (any, error) {
	switch class {
	case libsl.PrimitiveInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		return v, errors.WithStack(err)
	case libsl.PrimitiveReal:
		v, err := strconv.ParseFloat(raw, 64)
		return v, errors.WithStack(err)
	case libsl.PrimitiveBool:
		v, err := strconv.ParseBool(raw)
		return v, errors.WithStack(err)
	}
	return raw, nil
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case float64:
		if t == math.Trunc(t) {
			return int64(t), true
		}
	}
	return 0, false
}

func toBool(v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("expected boolean, found %s", describe(v))
	}
	return b, nil
}

func describe(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T (%v)", v, v)
}

// equal compares values treating integers and reals as numbers.
func equal(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	_, boolA := a.(bool)
	_, boolB := b.(bool)
	if okA && okB && !boolA && !boolB {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// zeroValue is the initial value of a field of the resolved type.
func zeroValue(r *libsl.Resolved) any {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case libsl.KindArray:
		return []any{}
	case libsl.KindMap:
		return map[string]any{}
	case libsl.KindStruct:
		return nil
	case libsl.KindEnum:
		if len(r.Enum.Constants) > 0 {
			return r.Enum.Constants[0].Name
		}
		return nil
	}

	switch libsl.PrimitiveClass(r.Name) {
	case libsl.PrimitiveInt:
		return int64(0)
	case libsl.PrimitiveReal:
		return float64(0)
	case libsl.PrimitiveBool:
		return false
	case libsl.PrimitiveString:
		return ""
	}
	return nil
}

// getPath reads a field path from a value. Missing fields read as nil.
func getPath(v any, path []string) any {
	for _, field := range path {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[field]
	}
	return v
}

// setPath writes a field path below root, creating intermediate objects,
// and returns the possibly replaced root.
func setPath(root any, path []string, value any) any {
	if len(path) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[path[0]] = setPath(m[path[0]], path[1:], value)
	return m
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
