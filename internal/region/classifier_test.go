package region

import (
	"testing"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(zap.NewNop())

	cases := []struct {
		in   string
		want string
	}{
		{"DE", model.RegionEU},
		{"fr", model.RegionEU},
		{"A1PA6795UKMFR9", model.RegionEU},
		{"IS", model.RegionEU},
		{"VA", model.RegionEU},
		{"US", "US"},
		{"ATVPDKIKX0DER", "US"},
		{"UK", "UK"},
		{"GB", "UK"},
		{"A1F83G8C2ARO7P", "UK"},
		{" ca ", "CA"},
		{"", model.RegionUnknown},
		{"ZZ", model.RegionUnknown},
		{"NOT-A-MARKETPLACE", model.RegionUnknown},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.in); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClassifyUnknownWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := NewClassifier(zap.New(core))

	if got := c.Classify("XX-MARKET"); got != model.RegionUnknown {
		t.Fatalf("expected UNKNOWN, got %q", got)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning, got %d", logs.Len())
	}
	if logs.All()[0].ContextMap()["marketplace"] != "XX-MARKET" {
		t.Fatalf("warning missing marketplace field: %v", logs.All()[0].ContextMap())
	}

	c.Classify("DE")
	if logs.Len() != 1 {
		t.Fatalf("known marketplace must not warn, got %d entries", logs.Len())
	}
}

func TestUKIsNotEU(t *testing.T) {
	if IsEU("UK") || IsEU("GB") {
		t.Fatal("UK must not be part of the EU region")
	}
}
