package theme

import (
	"errors"
	"testing"
)

type memStore struct {
	value   string
	ok      bool
	saveErr error
}

func (s *memStore) LoadTheme() (string, bool, error) { return s.value, s.ok, nil }

func (s *memStore) SaveTheme(v string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.value, s.ok = v, true
	return nil
}

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func TestDetect(t *testing.T) {
	tests := []struct {
		in   string
		want Theme
	}{
		{"", Light},
		{"15;0", Dark},
		{"0;15", Light},
		{"0;7", Light},
		{"7;default;0", Dark},
		{"garbage", Light},
	}
	for _, tt := range tests {
		if got := Detect(env(map[string]string{"COLORFGBG": tt.in})); got != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestInitFromSlot(t *testing.T) {
	m := NewManager(&memStore{value: "dark", ok: true}, nil, nil, env(nil))
	if m.Current() != Dark {
		t.Errorf("Current() = %s, want dark", m.Current())
	}
}

func TestInitFallsBackToDetection(t *testing.T) {
	m := NewManager(&memStore{value: "sepia", ok: true}, nil, nil, env(map[string]string{"COLORFGBG": "15;0"}))
	if m.Current() != Dark {
		t.Errorf("Current() = %s, want dark from COLORFGBG", m.Current())
	}
}

func TestTogglePersists(t *testing.T) {
	s := &memStore{}
	m := NewManager(s, nil, nil, env(nil))

	got, err := m.Toggle()
	if err != nil {
		t.Fatal(err)
	}
	if got != Dark || s.value != "dark" {
		t.Errorf("Toggle() = %s, stored %q; want dark", got, s.value)
	}
	got, _ = m.Toggle()
	if got != Light {
		t.Errorf("second Toggle() = %s, want light", got)
	}
}

func TestSetKeepsValueOnPersistFailure(t *testing.T) {
	m := NewManager(&memStore{saveErr: errors.New("disk full")}, nil, nil, env(nil))
	if err := m.Set(Dark); err == nil {
		t.Error("Set() expected error")
	}
	if m.Current() != Dark {
		t.Errorf("Current() = %s, want dark", m.Current())
	}
}

func TestParse(t *testing.T) {
	if th, err := Parse(" Dark "); err != nil || th != Dark {
		t.Errorf("Parse(Dark) = %s, %v", th, err)
	}
	if _, err := Parse("blue"); err == nil {
		t.Error("Parse(blue) expected error")
	}
}
