package telemetry

import (
	"reflect"
	"testing"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultRules())

	cases := []struct {
		name string
		want []Kind
	}{
		{"GS1-Outdoor", []Kind{SoilSensor}},
		{"greenhouse gs1", []Kind{SoilSensor}},
		{"Smart Plug 1", []Kind{SmartPlug}},
		{"PLUG kitchen", []Kind{SmartPlug}},
		{"gs1 plug combo", []Kind{SoilSensor, SmartPlug}},
		{"WS1 weather station", nil},
		{"", nil},
	}

	for _, tc := range cases {
		got := c.Classify(tc.name)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Classify(%q): expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestClassifierAliases(t *testing.T) {
	base := NewClassifier(DefaultRules())
	c := base.WithAliases(map[string]Kind{
		"Agricultural": SoilSensor,
		"socket":       SmartPlug,
		"sp1":          SmartPlug,
	})

	if got := c.Classify("Agricultural Field A"); !reflect.DeepEqual(got, []Kind{SoilSensor}) {
		t.Fatalf("expected alias match, got %v", got)
	}
	if got := c.Classify("SP1 lab"); !reflect.DeepEqual(got, []Kind{SmartPlug}) {
		t.Fatalf("expected alias match, got %v", got)
	}
	if got := base.Classify("socket 3"); got != nil {
		t.Fatalf("aliases must not leak into the base classifier, got %v", got)
	}
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("SMART_PLUG")
	if err != nil || k != SmartPlug {
		t.Fatalf("expected smart_plug, got %q (%v)", k, err)
	}
	if _, err := ParseKind("toaster"); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}
