package shared

import "testing"

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds  float64
		expected string
	}{
		{0, "--:--"},
		{-3, "--:--"},
		{5, "0:05"},
		{65.9, "1:05"},
		{600, "10:00"},
		{3600, "1:00:00"},
		{3723, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.expected {
			t.Errorf("FormatDuration(%v): expected %q, got %q", tt.seconds, tt.expected, got)
		}
	}
}

func TestMarshalJSON(t *testing.T) {
	v := map[string]int{"a": 1}
	compact, err := MarshalJSON(v, false)
	if err != nil || string(compact) != `{"a":1}` {
		t.Errorf("unexpected compact output %q (%v)", compact, err)
	}
	pretty, err := MarshalJSON(v, true)
	if err != nil || string(pretty) != "{\n  \"a\": 1\n}" {
		t.Errorf("unexpected pretty output %q (%v)", pretty, err)
	}
}
