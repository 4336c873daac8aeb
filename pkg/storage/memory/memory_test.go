package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

func makeReport(id, domain string, createdAt int64) *api.Report {
	return api.NewReport(id, domain, createdAt)
}

func TestSaveAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.SaveReport(ctx, makeReport("anl_1", "culture", 1000)); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	got, err := s.GetReport(ctx, "anl_1")
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if got.ID != "anl_1" || got.Domain != "culture" || got.State != api.StateIdle {
		t.Errorf("report = %+v", got)
	}
}

func TestSaveConflict(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	s.SaveReport(ctx, makeReport("anl_dup", "culture", 1))

	if err := s.SaveReport(ctx, makeReport("anl_dup", "culture", 2)); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	_, err := New(0).GetReport(context.Background(), "anl_missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReturnedReportIsACopy(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	rep := makeReport("anl_copy", "culture", 1)
	s.SaveReport(ctx, rep)

	rep.State = api.StateFailed
	got, _ := s.GetReport(ctx, "anl_copy")
	if got.State != api.StateIdle {
		t.Error("mutating the saved report changed the stored copy")
	}

	got.Domain = "changed"
	again, _ := s.GetReport(ctx, "anl_copy")
	if again.Domain != "culture" {
		t.Error("mutating a returned report changed the stored copy")
	}
}

func TestUpdateReport(t *testing.T) {
	s := New(0)
	ctx := storage.SetTenant(context.Background(), "org-1")
	rep := makeReport("anl_upd", "culture", 1)
	s.SaveReport(ctx, rep)

	rep.Finish(&api.AnalysisResult{ID: "anl_upd", OverallConfidence: 0.8}, nil, 5)
	rep.Tenant = "org-2"
	if err := s.UpdateReport(ctx, rep); err != nil {
		t.Fatalf("UpdateReport: %v", err)
	}

	got, _ := s.GetReport(ctx, "anl_upd")
	if got.State != api.StateCompleted || got.Result.OverallConfidence != 0.8 {
		t.Errorf("report = %+v", got)
	}
	if got.Tenant != "org-1" {
		t.Errorf("Tenant = %q, owner must not change", got.Tenant)
	}

	if err := s.UpdateReport(ctx, makeReport("anl_none", "culture", 1)); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	s.SaveReport(ctx, makeReport("anl_del", "culture", 1))

	if err := s.DeleteReport(ctx, "anl_del"); err != nil {
		t.Fatalf("DeleteReport failed: %v", err)
	}
	if _, err := s.GetReport(ctx, "anl_del"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteReport(ctx, "anl_del"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New(0)
	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	s.SaveReport(ctxA, makeReport("anl_a", "culture", 1))

	if _, err := s.GetReport(ctxA, "anl_a"); err != nil {
		t.Errorf("tenant A should see its report: %v", err)
	}
	if _, err := s.GetReport(ctxB, "anl_a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("tenant B should not see tenant A's report, got %v", err)
	}
	if err := s.DeleteReport(ctxB, "anl_a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("tenant B should not delete tenant A's report, got %v", err)
	}
	if _, err := s.GetReport(context.Background(), "anl_a"); err != nil {
		t.Errorf("no-tenant context should see all reports: %v", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	s.SaveReport(ctx, makeReport("anl_1", "culture", 1))
	s.SaveReport(ctx, makeReport("anl_2", "culture", 2))

	// Touch anl_1 so anl_2 becomes least recently used.
	s.GetReport(ctx, "anl_1")
	s.SaveReport(ctx, makeReport("anl_3", "culture", 3))

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, err := s.GetReport(ctx, "anl_2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("anl_2 should have been evicted, got %v", err)
	}
	for _, id := range []string{"anl_1", "anl_3"} {
		if _, err := s.GetReport(ctx, id); err != nil {
			t.Errorf("%s should still exist: %v", id, err)
		}
	}
}

func seed(t *testing.T, s *Store, ctx context.Context, n int, domain string) {
	t.Helper()
	for i := 1; i <= n; i++ {
		if err := s.SaveReport(ctx, makeReport(fmt.Sprintf("anl_%s_%02d", domain, i), domain, int64(i))); err != nil {
			t.Fatal(err)
		}
	}
}

func TestListReports(t *testing.T) {
	s := New(0)
	ctx := context.Background()
	seed(t, s, ctx, 5, "culture")
	seed(t, s, ctx, 2, "skills")

	tests := []struct {
		name    string
		opts    transport.ListOptions
		wantIDs []string
		hasMore bool
	}{
		{
			name:    "domain filter desc",
			opts:    transport.ListOptions{Domain: "skills"},
			wantIDs: []string{"anl_skills_02", "anl_skills_01"},
		},
		{
			name:    "limit",
			opts:    transport.ListOptions{Domain: "culture", Limit: 2},
			wantIDs: []string{"anl_culture_05", "anl_culture_04"},
			hasMore: true,
		},
		{
			name:    "after cursor",
			opts:    transport.ListOptions{Domain: "culture", After: "anl_culture_04", Limit: 2},
			wantIDs: []string{"anl_culture_03", "anl_culture_02"},
			hasMore: true,
		},
		{
			name:    "before cursor asc",
			opts:    transport.ListOptions{Domain: "culture", Before: "anl_culture_03", Order: "asc"},
			wantIDs: []string{"anl_culture_01", "anl_culture_02"},
		},
		{
			name: "unknown cursor",
			opts: transport.ListOptions{After: "anl_nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListReports(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListReports: %v", err)
			}
			if len(list.Data) != len(tt.wantIDs) {
				t.Fatalf("got %d reports, want %d", len(list.Data), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if list.Data[i].ID != id {
					t.Errorf("Data[%d].ID = %q, want %q", i, list.Data[i].ID, id)
				}
			}
			if list.HasMore != tt.hasMore {
				t.Errorf("HasMore = %v, want %v", list.HasMore, tt.hasMore)
			}
		})
	}
}

func TestListReportsTenantScoped(t *testing.T) {
	s := New(0)
	seed(t, s, storage.SetTenant(context.Background(), "a"), 3, "culture")
	seed(t, s, storage.SetTenant(context.Background(), "b"), 2, "skills")

	list, _ := s.ListReports(storage.SetTenant(context.Background(), "b"), transport.ListOptions{})
	if len(list.Data) != 2 {
		t.Errorf("tenant b sees %d reports, want 2", len(list.Data))
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := New(50)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("anl_%03d", i)
			rep := makeReport(id, "culture", int64(i))
			s.SaveReport(ctx, rep)
			s.GetReport(ctx, id)
			s.ListReports(ctx, transport.ListOptions{Limit: 5})
		}(i)
	}
	wg.Wait()

	if s.Len() > 50 {
		t.Errorf("Len() = %d, exceeds max size", s.Len())
	}
}
