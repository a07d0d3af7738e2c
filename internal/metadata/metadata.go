// Package metadata turns raw extractor fields into the human-facing field
// values stored in the DAM.
package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Human-facing field names
const (
	FieldHeight       = "Height"
	FieldWidth        = "Width"
	FieldLayerCount   = "Layer Count"
	FieldLayerNames   = "Layer Names"
	FieldProjectName  = "Project Name"
	FieldAnimation    = "Animation?"
	FieldTimelineName = "Timeline Name"
	FieldFrameRate    = "Frame Rate"
	FieldFrameCount   = "Frame Count"
)

// Extractor keys used for the derived frame count
const (
	KeyStartFrame = "StartFrame"
	KeyEndFrame   = "EndFrame"
)

// fieldKeys maps each human field to the extractor key it is copied from.
// Width reads ImageHeight as the extractor does not report a separate width
// key in the version this bridge targets. Frame Count is derived from
// StartFrame/EndFrame, and its own key only applies when the tool reports it.
var fieldKeys = map[string]string{
	FieldHeight:       "ImageHeight",
	FieldWidth:        "ImageHeight",
	FieldLayerCount:   "LayerCount",
	FieldLayerNames:   "LayerNames",
	FieldProjectName:  "ProjectName",
	FieldAnimation:    "AnimationEnabled",
	FieldTimelineName: "TimeLineName",
	FieldFrameRate:    "FrameRate",
	FieldFrameCount:   FieldFrameCount,
}

// Record maps human field names to string values
type Record map[string]string

// FieldNames returns every field the bridge can publish, sorted
func FieldNames() []string {
	names := make([]string, 0, len(fieldKeys))
	for name := range fieldKeys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Translate builds a Record from raw extractor metadata. Fields whose key is
// absent are omitted.
func Translate(raw map[string]any) Record {
	rec := make(Record, len(fieldKeys))
	for name, key := range fieldKeys {
		if v, ok := raw[key]; ok {
			rec[name] = Stringify(v)
		}
	}

	if v, ok := raw[fieldKeys[FieldAnimation]]; ok {
		if truthy(v) {
			rec[FieldAnimation] = "True"
		} else {
			rec[FieldAnimation] = "False"
		}
	}

	start, hasStart := raw[KeyStartFrame]
	end, hasEnd := raw[KeyEndFrame]
	if hasStart && hasEnd {
		s, errS := toInt(start)
		e, errE := toInt(end)
		if errS == nil && errE == nil {
			rec[FieldFrameCount] = strconv.FormatInt(e-s, 10)
		} else {
			delete(rec, FieldFrameCount)
		}
	}

	return rec
}

// Stringify renders a raw JSON value the way it is shown in the DAM
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t.String()
		}
		if f, err := t.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

// toInt converts a frame number, truncating fractional values
func toInt(v any) (int64, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return truncate(f)
	case float64:
		return truncate(t)
	case int:
		return int64(t), nil
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(t), 10, 64)
	default:
		return 0, fmt.Errorf("frame value %v is not a number", v)
	}
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("frame value %v is not finite", f)
	}
	return int64(f), nil
}
