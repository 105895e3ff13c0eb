package exercise

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"situps", Situps},
		{"Sit-Ups", Situps},
		{" SQUATS ", Squats},
		{"pushups", Pushups},
		{"push-ups", Pushups},
		{"lunges", Lunges},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseKind(tc.in)
			if err != nil {
				t.Fatalf("ParseKind(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseKind(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}

	if _, err := ParseKind("home"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind for home, got %v", err)
	}
}

func TestKind_Implemented(t *testing.T) {
	for _, k := range All() {
		want := k != Lunges
		if k.Implemented() != want {
			t.Errorf("%v.Implemented() = %v, want %v", k, k.Implemented(), want)
		}
	}
	if Kind(0).Implemented() {
		t.Error("zero Kind should not be implemented")
	}
}

func TestKind_JSON(t *testing.T) {
	type payload struct {
		Exercise Kind `json:"exercise"`
	}

	data, err := json.Marshal(payload{Exercise: Squats})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"exercise":"squats"}` {
		t.Errorf("got %s", data)
	}

	var p payload
	if err := json.Unmarshal([]byte(`{"exercise":"pushups"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Exercise != Pushups {
		t.Errorf("got %v, want pushups", p.Exercise)
	}

	if _, err := json.Marshal(payload{}); err == nil {
		t.Error("expected error marshalling zero Kind")
	}
}
