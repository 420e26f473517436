package storage

import (
	"testing"
	"time"

	"github.com/Tiliavir/watch-drift/internal/model"
)

func TestLatestSyncIgnoresOtherWatches(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []model.Record{
		{ID: "a", Watch: "Rolex", Kind: model.KindSync, Timestamp: day.Add(2 * time.Hour)},
		{ID: "b", Watch: "rolex", Kind: model.KindSync, Timestamp: day},
		{ID: "c", Watch: "rolex", Kind: model.KindMeasurement, Timestamp: day.Add(3 * time.Hour)},
	}
	got := latestSync(records, "rolex", day.Add(4*time.Hour))
	if got == nil || got.ID != "b" {
		t.Errorf("latestSync = %+v, want record b", got)
	}
	if got := latestSync(records, "omega", day.Add(4*time.Hour)); got != nil {
		t.Errorf("latestSync for unknown watch = %+v, want nil", got)
	}
}
