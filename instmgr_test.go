package instmgr

import "testing"

func TestParseAction(t *testing.T) {
	tests := []struct {
		input   string
		want    Action
		wantErr bool
	}{
		{"start", ActionStart, false},
		{"stop", ActionStop, false},
		{"restart", ActionRestart, false},
		{"force-restart", ActionForceRestart, false},
		{"status", ActionStatus, false},
		{"", ActionUnknown, true},
		{"reload", ActionUnknown, true},
		{"Start", ActionUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAction(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAction(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAction(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestActionRoundTrip(t *testing.T) {
	for _, action := range Actions() {
		parsed, err := ParseAction(action.String())
		if err != nil {
			t.Errorf("ParseAction(%q) error = %v", action.String(), err)
		}
		if parsed != action {
			t.Errorf("round trip of %v yielded %v", action, parsed)
		}
	}
}
