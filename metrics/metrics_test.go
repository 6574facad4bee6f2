package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(BridgeOperations.WithLabelValues("get", "scene_list", OutcomeNotSetUp))
	RecordOperation("get", "scene_list", OutcomeNotSetUp)
	after := testutil.ToFloat64(BridgeOperations.WithLabelValues("get", "scene_list", OutcomeNotSetUp))
	if after != before+1 {
		t.Errorf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestRecordRefresh(t *testing.T) {
	ok := testutil.ToFloat64(Refreshes.WithLabelValues(OutcomeOK))
	failed := testutil.ToFloat64(Refreshes.WithLabelValues(OutcomeError))

	RecordRefresh(nil)
	RecordRefresh(errors.New("boom"))
	RecordRefresh(errors.New("boom"))

	if got := testutil.ToFloat64(Refreshes.WithLabelValues(OutcomeOK)); got != ok+1 {
		t.Errorf("ok refreshes: expected %v, got %v", ok+1, got)
	}
	if got := testutil.ToFloat64(Refreshes.WithLabelValues(OutcomeError)); got != failed+2 {
		t.Errorf("failed refreshes: expected %v, got %v", failed+2, got)
	}
}
