package metrics

import (
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mmcdole/harvester/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector("test")

	c.OnPageDone(domain.PageReport{ItemID: "1", Page: 0, Extracted: 10, Records: 10})
	c.OnPageDone(domain.PageReport{ItemID: "1", Page: 1, Extracted: 5, Records: 3})
	c.OnPageDone(domain.PageReport{ItemID: "1", Page: 2})
	c.OnPageDone(domain.PageReport{ItemID: "2", Page: 0, Err: fmt.Errorf("%w: 503", domain.ErrFetch)})
	c.OnItemDone(domain.ItemTally{ItemID: "1", Expected: 15, Observed: 13, Stop: domain.StopEmptyPage})
	c.OnItemDone(domain.ItemTally{ItemID: "2", Expected: 0, Stop: domain.StopPageFailure})
	c.OnBatchDone(domain.BatchProgress{Offset: 100, Total: 250, Items: 100})

	if got := testutil.ToFloat64(c.records); got != 13 {
		t.Errorf("records = %v, want 13", got)
	}
	if got := testutil.ToFloat64(c.writeFailures); got != 2 {
		t.Errorf("write failures = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.pages.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok pages = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.pages.WithLabelValues("empty")); got != 1 {
		t.Errorf("empty pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.pages.WithLabelValues("fetch")); got != 1 {
		t.Errorf("fetch pages = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.items.WithLabelValues("failure")); got != 1 {
		t.Errorf("failed items = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.discrepancies); got != 1 {
		t.Errorf("discrepancies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.offset); got != 100 {
		t.Errorf("offset = %v, want 100", got)
	}
	if got := testutil.ToFloat64(c.total); got != 250 {
		t.Errorf("total = %v, want 250", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector("v1.2.3")
	c.OnBatchDone(domain.BatchProgress{Offset: 10, Total: 10})

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`harvester_info{version="v1.2.3"} 1`,
		"harvester_catalog_offset 10",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
