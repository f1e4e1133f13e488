package alerting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseThresholds(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Thresholds
	}{
		{
			name: "nil map",
			raw:  nil,
			want: nil,
		},
		{
			name: "empty map",
			raw:  map[string]any{},
			want: nil,
		},
		{
			name: "both bounds",
			raw: map[string]any{
				"moisture": map[string]any{"min": 30.0, "max": 70.0},
			},
			want: Thresholds{
				"moisture": {Min: ptr(30.0), Max: ptr(70.0)},
			},
		},
		{
			name: "min only",
			raw: map[string]any{
				"temperature": map[string]any{"min": 5.0},
			},
			want: Thresholds{
				"temperature": {Min: ptr(5.0)},
			},
		},
		{
			name: "non-numeric bound",
			raw: map[string]any{
				"moisture": map[string]any{"min": "thirty"},
			},
			want: nil,
		},
		{
			name: "entry is not an object",
			raw: map[string]any{
				"moisture": "broken",
			},
			want: nil,
		},
		{
			name: "one corrupt entry poisons the whole blob",
			raw: map[string]any{
				"moisture": map[string]any{"min": 30.0},
				"light":    []any{1, 2, 3},
			},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseThresholds(tt.raw))
		})
	}
}

func ptr(v float64) *float64 { return &v }
