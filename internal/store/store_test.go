package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/triage-ai/toolcanon/internal/model"
	"go.uber.org/zap"
)

func canonicalTool(name string, f model.Format) model.CanonicalTool {
	tool := model.NewTool(name)
	tool.Description = "tool " + name
	tool.SourceFormat = f
	tool.Capabilities = model.ToolCapability{Action: "read", Domain: "filesystem", Idempotent: true, CostEstimate: "unknown"}
	return tool
}

func TestTags(t *testing.T) {
	tool := model.NewTool("write_file")
	tool.Capabilities = model.ToolCapability{Action: "write", Domain: "filesystem", SideEffects: true}
	tool.Security = &model.ToolSecurity{
		RequiredPermissions: []string{"fs:write"},
		DataClassification:  "confidential",
		PIIHandling:         "stores",
	}

	if got := CapabilityTags(tool); !reflect.DeepEqual(got, []string{"write", "filesystem", "side_effects"}) {
		t.Fatalf("capability tags = %v", got)
	}
	if got := SecurityTags(tool); !reflect.DeepEqual(got, []string{"fs:write", "confidential"}) {
		t.Fatalf("security tags = %v", got)
	}
	if got := PIITags(tool); !reflect.DeepEqual(got, []string{"stores"}) {
		t.Fatalf("pii tags = %v", got)
	}
}

func TestTags_DefaultsAndEmpty(t *testing.T) {
	tool := model.NewTool("x")
	if got := CapabilityTags(tool); len(got) != 0 {
		t.Fatalf("expected no capability tags for empty action/domain, got %v", got)
	}
	if got := SecurityTags(tool); len(got) != 0 {
		t.Fatalf("expected no security tags without security, got %v", got)
	}

	sec := model.DefaultSecurity()
	tool.Security = &sec
	if got := SecurityTags(tool); len(got) != 0 {
		t.Fatalf("public classification is not a tag, got %v", got)
	}
	if got := PIITags(tool); len(got) != 0 {
		t.Fatalf("none pii handling is not a tag, got %v", got)
	}
}

func TestFromCanonicalTool(t *testing.T) {
	tool := canonicalTool("read_file", model.FormatMCP)
	stored, err := FromCanonicalTool(tool, Tags{Capabilities: []string{"extra"}, PII: []string{"logs"}})
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID == "" {
		t.Fatal("expected generated id")
	}
	if stored.SourceFormat != "mcp" {
		t.Fatalf("expected mcp, got %s", stored.SourceFormat)
	}
	if !reflect.DeepEqual(stored.Capabilities, []string{"read", "filesystem", "extra"}) {
		t.Fatalf("capabilities = %v", stored.Capabilities)
	}
	if !reflect.DeepEqual(stored.PIITags, []string{"logs"}) {
		t.Fatalf("pii tags = %v", stored.PIITags)
	}

	back, err := stored.Tool()
	if err != nil {
		t.Fatal(err)
	}
	if back.Name != "read_file" || back.SourceFormat != model.FormatMCP {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func testRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()

	var ids []string
	for i, f := range []model.Format{model.FormatOpenAI, model.FormatMCP, model.FormatOpenAI} {
		stored, err := FromCanonicalTool(canonicalTool("tool", f), Tags{})
		if err != nil {
			t.Fatal(err)
		}
		stored.CreatedAt = time.Unix(int64(1000+i), 0).UTC()
		if err := repo.Put(ctx, stored); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, stored.ID)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}

	got, err := repo.Get(ctx, ids[1])
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.SourceFormat != "mcp" {
		t.Fatalf("unexpected row %+v", got)
	}
	if !reflect.DeepEqual(got.Capabilities, []string{"read", "filesystem"}) {
		t.Fatalf("capabilities = %v", got.Capabilities)
	}
	if !got.CreatedAt.Equal(time.Unix(1001, 0)) {
		t.Fatalf("created_at = %v", got.CreatedAt)
	}

	missing, err := repo.Get(ctx, "nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("expected nil for unknown id")
	}

	page, err := repo.List(ctx, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 2 || page[0].ID != ids[1] || page[1].ID != ids[2] {
		t.Fatalf("unexpected page %v", page)
	}

	openai, err := repo.ListBySourceFormat(ctx, "openai")
	if err != nil {
		t.Fatal(err)
	}
	if len(openai) != 2 {
		t.Fatalf("expected 2 openai rows, got %d", len(openai))
	}

	got.Name = "renamed"
	if err := repo.Put(ctx, got); err != nil {
		t.Fatal(err)
	}
	again, _ := repo.Get(ctx, ids[1])
	if again.Name != "renamed" {
		t.Fatalf("expected upsert, got %s", again.Name)
	}
	if n, _ := repo.Count(ctx); n != 3 {
		t.Fatalf("upsert must not add rows, got %d", n)
	}

	ok, err := repo.Delete(ctx, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected delete to report existing row")
	}
	ok, _ = repo.Delete(ctx, ids[0])
	if ok {
		t.Fatal("second delete must report false")
	}
	all, _ := repo.List(ctx, 0, 0)
	if len(all) != 2 {
		t.Fatalf("expected 2 rows after delete, got %d", len(all))
	}
}

func TestMemoryRepository(t *testing.T) {
	testRepository(t, NewMemoryRepository())
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tools.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	testRepository(t, repo)
}

func TestRebind(t *testing.T) {
	sqlite := NewSQLRepository(nil, DialectSQLite)
	if got := sqlite.rebind("a = $1 AND b = $2"); got != "a = ?1 AND b = ?2" {
		t.Fatalf("unexpected sqlite query %q", got)
	}
	pg := NewSQLRepository(nil, DialectPostgres)
	if got := pg.rebind("a = $1"); got != "a = $1" {
		t.Fatalf("unexpected postgres query %q", got)
	}
}

// countingRepository counts Get calls against an in-memory repository.
type countingRepository struct {
	*MemoryRepository
	gets atomic.Int32
	err  error
}

func (c *countingRepository) Get(ctx context.Context, id string) (*StoredTool, error) {
	c.gets.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.MemoryRepository.Get(ctx, id)
}

func TestToolStore_GetUsesCache(t *testing.T) {
	repo := &countingRepository{MemoryRepository: NewMemoryRepository()}
	ts := NewToolStore(Config{Repository: repo, CacheTTL: 30 * time.Second, Logger: zap.NewNop()})
	ctx := context.Background()

	id, err := ts.Save(ctx, canonicalTool("read_file", model.FormatMCP), Tags{})
	if err != nil {
		t.Fatal(err)
	}

	got, err := ts.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Name != "read_file" {
		t.Fatalf("unexpected tool %+v", got)
	}
	if repo.gets.Load() != 0 {
		t.Fatalf("expected Save to warm the cache, got %d repository reads", repo.gets.Load())
	}
}

func TestToolStore_NegativeCache(t *testing.T) {
	repo := &countingRepository{MemoryRepository: NewMemoryRepository()}
	ts := NewToolStore(Config{Repository: repo, CacheTTL: 30 * time.Second})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := ts.Get(ctx, "missing")
		if err != nil {
			t.Fatal(err)
		}
		if got != nil {
			t.Fatal("expected nil for unknown id")
		}
	}
	if repo.gets.Load() != 1 {
		t.Fatalf("expected 1 repository read, got %d", repo.gets.Load())
	}
}

func TestToolStore_GetError(t *testing.T) {
	repo := &countingRepository{MemoryRepository: NewMemoryRepository(), err: errors.New("db down")}
	ts := NewToolStore(Config{Repository: repo})
	if _, err := ts.Get(context.Background(), "id"); err == nil {
		t.Fatal("expected error")
	}
}

func TestToolStore_DeleteEvictsCache(t *testing.T) {
	ts := NewToolStore(Config{})
	ctx := context.Background()
	id, _ := ts.Save(ctx, canonicalTool("x", model.FormatRaw), Tags{})

	ok, err := ts.Delete(ctx, id)
	if err != nil || !ok {
		t.Fatalf("Delete = %v, %v", ok, err)
	}
	got, err := ts.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("expected deleted tool to be gone")
	}
}

func TestToolStore_Queries(t *testing.T) {
	ts := NewToolStore(Config{})
	ctx := context.Background()

	search := model.NewTool("Search_Web")
	search.SourceFormat = model.FormatOpenAI
	search.Capabilities = model.ToolCapability{Action: "search", Domain: "web"}
	search.Security = &model.ToolSecurity{RequiredPermissions: []string{"internet"}, DataClassification: "public", PIIHandling: "processes"}

	write := model.NewTool("write_file")
	write.SourceFormat = model.FormatMCP
	write.Capabilities = model.ToolCapability{Action: "write", Domain: "filesystem", SideEffects: true}

	for _, tool := range []model.CanonicalTool{search, write} {
		if _, err := ts.Save(ctx, tool, Tags{}); err != nil {
			t.Fatal(err)
		}
	}

	names := func(tools []*StoredTool) []string {
		out := []string{}
		for _, t := range tools {
			out = append(out, t.Name)
		}
		return out
	}

	byCap, _ := ts.FindByCapability(ctx, "side_effects")
	if !reflect.DeepEqual(names(byCap), []string{"write_file"}) {
		t.Fatalf("FindByCapability = %v", names(byCap))
	}
	partial, _ := ts.FindByCapability(ctx, "sea")
	if len(partial) != 0 {
		t.Fatalf("capability match must be exact, got %v", names(partial))
	}
	bySec, _ := ts.FindBySecurityTag(ctx, "internet")
	if !reflect.DeepEqual(names(bySec), []string{"Search_Web"}) {
		t.Fatalf("FindBySecurityTag = %v", names(bySec))
	}
	byPII, _ := ts.FindByPIITag(ctx, "processes")
	if !reflect.DeepEqual(names(byPII), []string{"Search_Web"}) {
		t.Fatalf("FindByPIITag = %v", names(byPII))
	}
	byName, _ := ts.SearchByName(ctx, "search_")
	if !reflect.DeepEqual(names(byName), []string{"Search_Web"}) {
		t.Fatalf("SearchByName = %v", names(byName))
	}
	byFormat, _ := ts.FindBySourceFormat(ctx, model.FormatMCP)
	if !reflect.DeepEqual(names(byFormat), []string{"write_file"}) {
		t.Fatalf("FindBySourceFormat = %v", names(byFormat))
	}
	n, _ := ts.Count(ctx)
	if n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	all, _ := ts.All(ctx, 1, 0)
	if len(all) != 1 {
		t.Fatalf("expected page of 1, got %d", len(all))
	}
}

// pagingRepository records the List calls made against an in-memory repository.
type pagingRepository struct {
	*MemoryRepository
	lists atomic.Int32
}

func (p *pagingRepository) List(ctx context.Context, limit, offset int) ([]*StoredTool, error) {
	p.lists.Add(1)
	return p.MemoryRepository.List(ctx, limit, offset)
}

func TestToolStore_QueriesReadEveryPage(t *testing.T) {
	repo := &pagingRepository{MemoryRepository: NewMemoryRepository()}
	ts := NewToolStore(Config{Repository: repo})
	ctx := context.Background()

	total := 2*scanPageSize + 1
	for i := 0; i < total; i++ {
		if _, err := ts.Save(ctx, canonicalTool(fmt.Sprintf("read_%04d", i), model.FormatMCP), Tags{}); err != nil {
			t.Fatal(err)
		}
	}

	found, err := ts.FindByCapability(ctx, "filesystem")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != total {
		t.Fatalf("expected %d tools, got %d", total, len(found))
	}
	if found[total-1].Name != fmt.Sprintf("read_%04d", total-1) {
		t.Fatalf("last tool missing, got %s", found[total-1].Name)
	}
	if repo.lists.Load() != 3 {
		t.Fatalf("expected 3 pages, got %d", repo.lists.Load())
	}

	byName, err := ts.SearchByName(ctx, "READ_1000")
	if err != nil {
		t.Fatal(err)
	}
	if len(byName) != 1 {
		t.Fatalf("expected the tool on the last page, got %d", len(byName))
	}
}

func TestToolStore_GetReturnsCopy(t *testing.T) {
	ts := NewToolStore(Config{CacheTTL: 30 * time.Second})
	ctx := context.Background()
	id, err := ts.Save(ctx, canonicalTool("read_file", model.FormatMCP), Tags{})
	if err != nil {
		t.Fatal(err)
	}

	got, _ := ts.Get(ctx, id)
	got.Name = "renamed"
	got.Capabilities[0] = "write"

	again, _ := ts.Get(ctx, id)
	if again.Name != "read_file" || again.Capabilities[0] != "read" {
		t.Fatalf("cached row was modified through a returned value: %+v", again)
	}
}
