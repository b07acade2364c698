package render_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lootwatch/internal/artifacts"
	"lootwatch/internal/config"
	"lootwatch/internal/render"
	"lootwatch/internal/services"
	"lootwatch/internal/store"
	"lootwatch/internal/testsupport"
)

type fakeBrowser struct {
	failOn   string
	captured []string
	closed   bool
}

func (b *fakeBrowser) Capture(_ context.Context, url, selector string) ([]byte, error) {
	if selector != ".listing" {
		return nil, errors.New("unexpected selector " + selector)
	}
	if b.failOn != "" && strings.HasSuffix(url, "/item/"+b.failOn) {
		return nil, errors.New("navigation timeout")
	}
	b.captured = append(b.captured, url)
	return []byte("png:" + url), nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type launcher struct {
	browsers []*fakeBrowser
	failOn   string
	err      error
}

func (l *launcher) launch(context.Context, config.Renderer) (render.Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	b := &fakeBrowser{failOn: l.failOn}
	l.browsers = append(l.browsers, b)
	return b, nil
}

func setup(t *testing.T, l *launcher) (*render.Renderer, *store.Store, *artifacts.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Renderer.ViewerURL = "http://127.0.0.1:3117/"
	cfg.Renderer.BatchSize = 3
	cfg.Renderer.IdleDelayMS = 30000
	cfg.Renderer.CooldownMS = 60000
	st := testsupport.MustOpenStore(t, cfg)
	art := artifacts.New(cfg.Paths.ArtifactDir)
	return render.New(cfg, st, art, nil, render.WithLauncher(l.launch)), st, art, cfg
}

func TestRunCycleIdleWhenNothingPending(t *testing.T) {
	l := &launcher{}
	r, _, _, _ := setup(t, l)
	wait, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if wait != 30*time.Second {
		t.Fatalf("expected idle delay, got %v", wait)
	}
	if len(l.browsers) != 0 {
		t.Fatal("no browser should launch without work")
	}
}

func TestRunCycleRendersAndMarks(t *testing.T) {
	l := &launcher{}
	r, st, art, _ := setup(t, l)
	testsupport.MustInsert(t, st, testsupport.NewItem("a1", "A"), testsupport.NewItem("b2", "B"))

	wait, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if wait != 30*time.Second {
		t.Fatalf("partial batch should idle afterwards, got %v", wait)
	}
	if len(l.browsers) != 1 || !l.browsers[0].closed {
		t.Fatal("expected one browser, closed after the batch")
	}
	if got := l.browsers[0].captured; len(got) != 2 || got[0] != "http://127.0.0.1:3117/item/a1" {
		t.Fatalf("unexpected captures %v", got)
	}
	for _, id := range []string{"a1", "b2"} {
		item, err := st.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if !item.HasArtifact {
			t.Fatalf("%s not marked rendered", id)
		}
		if !art.Exists(id) {
			t.Fatalf("%s artifact missing", id)
		}
	}
}

func TestRunCycleContinuesAfterFullBatch(t *testing.T) {
	l := &launcher{}
	r, st, _, _ := setup(t, l)
	testsupport.MustInsert(t, st, testsupport.NewItem("a", "A"), testsupport.NewItem("b", "B"), testsupport.NewItem("c", "C"))
	wait, err := r.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if wait != 0 {
		t.Fatalf("expected immediate follow-up after a full batch, got %v", wait)
	}
}

func TestFailureAbortsBatchAndCoolsDown(t *testing.T) {
	l := &launcher{failOn: "b"}
	r, st, _, _ := setup(t, l)
	testsupport.MustInsert(t, st, testsupport.NewItem("a", "A"))
	testsupport.MustInsert(t, st, testsupport.NewItem("b", "B"))
	testsupport.MustInsert(t, st, testsupport.NewItem("c", "C"))

	wait, err := r.RunCycle(context.Background())
	if err == nil {
		t.Fatal("expected batch failure")
	}
	if wait != time.Minute {
		t.Fatalf("expected cooldown, got %v", wait)
	}
	if !l.browsers[0].closed {
		t.Fatal("browser must be torn down after a failure")
	}

	pending, err := st.PendingRender(context.Background(), 10)
	if err != nil {
		t.Fatalf("PendingRender: %v", err)
	}
	ids := make([]string, 0, len(pending))
	for _, item := range pending {
		ids = append(ids, item.ID)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "c" {
		t.Fatalf("expected b and c to stay pending, got %v", ids)
	}
}

func TestLaunchFailureCoolsDown(t *testing.T) {
	l := &launcher{err: errors.New("chrome not found")}
	r, st, _, _ := setup(t, l)
	testsupport.MustInsert(t, st, testsupport.NewItem("a", "A"))
	wait, err := r.RunCycle(context.Background())
	if err == nil || wait != time.Minute {
		t.Fatalf("expected cooldown after launch failure, got %v %v", wait, err)
	}
}

func TestRenderOne(t *testing.T) {
	l := &launcher{}
	r, st, art, _ := setup(t, l)
	testsupport.MustInsertRendered(t, st, "done")

	if err := r.RenderOne(context.Background(), "done"); err != nil {
		t.Fatalf("RenderOne: %v", err)
	}
	if !art.Exists("done") {
		t.Fatal("expected artifact to be re-rendered")
	}
	if err := r.RenderOne(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPrepareRejectsBadViewerURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Renderer.ViewerURL = "not a url"
	r := render.New(cfg, nil, artifacts.New(t.TempDir()), nil)
	if err := r.Prepare(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
