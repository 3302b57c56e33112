package status

import "testing"

func TestCompute_Priority(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Display
	}{
		{"disabled wins over everything", Inputs{Enabled: false, Live: true, ServerError: true, InsideMath: true}, Off},
		{"disabled without worker", Inputs{}, Off},
		{"no worker", Inputs{Enabled: true, ServerError: true, InsideMath: true}, Disconnected},
		{"live but unreachable", Inputs{Enabled: true, Live: true, Health: Unreachable}, Disconnected},
		{"server error over context", Inputs{Enabled: true, Live: true, ServerError: true, InsideMath: true}, ServerError},
		{"inside math", Inputs{Enabled: true, Live: true, InsideMath: true}, English},
		{"inside math reachable", Inputs{Enabled: true, Live: true, InsideMath: true, Health: Reachable}, English},
		{"prose", Inputs{Enabled: true, Live: true}, Hebrew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compute(tt.in); got != tt.want {
				t.Errorf("Compute(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDisplay_Labels(t *testing.T) {
	tests := []struct {
		d     Display
		label string
		name  string
	}{
		{Off, "Lang: Off", "off"},
		{Disconnected, "Lang: Disconnected", "disconnected"},
		{ServerError, "Lang: Server Error", "server_error"},
		{English, "Lang: EN", "english"},
		{Hebrew, "Lang: HE", "hebrew"},
	}
	for _, tt := range tests {
		if tt.d.Label() != tt.label {
			t.Errorf("%v.Label() = %q, want %q", tt.d, tt.d.Label(), tt.label)
		}
		if tt.d.String() != tt.name {
			t.Errorf("String() = %q, want %q", tt.d.String(), tt.name)
		}
	}

	if Display(42).Label() != "" {
		t.Error("expected empty label for unknown display")
	}
	if Display(42).String() != "display(42)" {
		t.Errorf("unexpected name %q", Display(42).String())
	}
}

func TestNew(t *testing.T) {
	in := Inputs{Enabled: true, Live: true, InsideMath: true}
	s := New(in)
	if s.Display != English || s.Label != "Lang: EN" || s.Inputs != in {
		t.Errorf("unexpected status %+v", s)
	}
	if !s.Display.Healthy() || Off.Healthy() {
		t.Error("Healthy mismatch")
	}
}

func TestHealth_String(t *testing.T) {
	if Unknown.String() != "unknown" || Reachable.String() != "reachable" || Unreachable.String() != "unreachable" {
		t.Error("unexpected health names")
	}
}
