package internaldefs

import (
	"strings"
	"testing"

	mtAuth "github.com/MrEthical07/mtAuth"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := make(map[mtAuth.MetricID]bool)
	names := make(map[string]bool)
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate id %d", def.ID)
		}
		if names[def.Name] || !strings.HasPrefix(def.Name, "mtauth_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		seen[def.ID] = true
		names[def.Name] = true
	}
	for id := mtAuth.MetricLoginSuccess; id < mtAuth.MetricLoginLatency; id++ {
		if !seen[id] {
			t.Fatalf("metric id %d has no counter definition", id)
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 0, 2}))
	want := [8]uint64{1, 1, 3, 3, 3, 3, 3, 3}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if len(HistogramUpperBounds)+1 != len(HistogramBoundSuffix) {
		t.Fatalf("bounds and suffixes out of step")
	}
}
