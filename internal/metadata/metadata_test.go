package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Record
	}{
		{
			name: "animation enabled",
			raw:  map[string]any{"AnimationEnabled": true},
			want: Record{FieldAnimation: "True"},
		},
		{
			name: "animation disabled",
			raw:  map[string]any{"AnimationEnabled": false},
			want: Record{FieldAnimation: "False"},
		},
		{
			name: "frame count derived from start and end",
			raw: map[string]any{
				"StartFrame": json.Number("10"),
				"EndFrame":   json.Number("34"),
			},
			want: Record{FieldFrameCount: "24"},
		},
		{
			name: "derived frame count overrides literal",
			raw: map[string]any{
				"StartFrame":  json.Number("10"),
				"EndFrame":    json.Number("34"),
				"Frame Count": json.Number("99"),
			},
			want: Record{FieldFrameCount: "24"},
		},
		{
			name: "no frames means no frame count",
			raw:  map[string]any{"LayerCount": json.Number("4")},
			want: Record{FieldLayerCount: "4"},
		},
		{
			name: "literal frame count kept without start and end",
			raw:  map[string]any{"Frame Count": json.Number("12"), "StartFrame": json.Number("1")},
			want: Record{FieldFrameCount: "12"},
		},
		{
			name: "non-numeric frames drop frame count",
			raw:  map[string]any{"StartFrame": "one", "EndFrame": json.Number("5")},
			want: Record{},
		},
		{
			name: "height feeds both height and width",
			raw:  map[string]any{"ImageHeight": json.Number("1080")},
			want: Record{FieldHeight: "1080", FieldWidth: "1080"},
		},
		{
			name: "full document",
			raw: map[string]any{
				"ImageHeight":      json.Number("2048"),
				"LayerCount":       json.Number("3"),
				"LayerNames":       []any{"Paper", "Sketch", "Ink"},
				"ProjectName":      "Hero",
				"AnimationEnabled": json.Number("1"),
				"TimeLineName":     "Main",
				"FrameRate":        json.Number("24"),
				"StartFrame":       json.Number("1"),
				"EndFrame":         json.Number("49"),
				"Unrelated":        "ignored",
			},
			want: Record{
				FieldHeight:       "2048",
				FieldWidth:        "2048",
				FieldLayerCount:   "3",
				FieldLayerNames:   "Paper, Sketch, Ink",
				FieldProjectName:  "Hero",
				FieldAnimation:    "True",
				FieldTimelineName: "Main",
				FieldFrameRate:    "24",
				FieldFrameCount:   "48",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Translate(tt.raw))
		})
	}
}

func TestFieldNames(t *testing.T) {
	assert.Equal(t, []string{
		"Animation?",
		"Frame Count",
		"Frame Rate",
		"Height",
		"Layer Count",
		"Layer Names",
		"Project Name",
		"Timeline Name",
		"Width",
	}, FieldNames())
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "23.976", Stringify(json.Number("23.976")))
	assert.Equal(t, "24", Stringify(json.Number("24.0")))
	assert.Equal(t, "1000", Stringify(json.Number("1e3")))
	assert.Equal(t, "-7", Stringify(json.Number("-7")))
	assert.Equal(t, "30", Stringify(float64(30)))
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
}
