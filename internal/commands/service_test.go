package commands

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/starford/incipit/internal/apperr"
	"github.com/starford/incipit/internal/compile"
	"github.com/starford/incipit/internal/meta"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/testutil"
)

type fakeWatcher struct {
	mu    sync.Mutex
	roots []string
	err   error
}

func (w *fakeWatcher) Watch(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.roots = append(w.roots, root)
	return w.err
}

func newService(t *testing.T, engine string, opts ...Option) *Service {
	t.Helper()
	return newServiceWith(t, engine, nil, opts...)
}

func newServiceWith(t *testing.T, engine string, dopts []compile.Option, opts ...Option) *Service {
	t.Helper()
	sub := compile.NewSubprocess(testutil.FakeEngine(t, engine), testutil.EngineArgs, nil)
	d := compile.NewDispatcher(sub, dopts...)
	settings := meta.NewSettingsStore(filepath.Join(t.TempDir(), "config"))
	return NewService(d, settings, opts...)
}

func TestOpenProject_TreeAndWatch(t *testing.T) {
	store := testutil.TestProject(t, map[string]string{
		"main.tex":         "x",
		"chapters/one.tex": "y",
		".incipit":         "{}",
		".git/HEAD":        "ref",
	})
	w := &fakeWatcher{}
	s := newService(t, testutil.CopyEngine, WithWatcher(w))

	tree, err := s.OpenProject(context.Background(), store.Root())
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if !tree.IsDir || tree.Path != "" {
		t.Errorf("root node = %+v", tree)
	}
	var names []string
	for _, c := range tree.Children {
		names = append(names, c.Name)
	}
	if got := strings.Join(names, ","); got != "chapters,main.tex" {
		t.Errorf("children = %s", got)
	}
	if len(w.roots) != 1 || w.roots[0] != store.Root() {
		t.Errorf("watched roots = %v", w.roots)
	}
}

func TestOpenProject_WatchFailureIsNotFatal(t *testing.T) {
	store := testutil.TestProject(t, map[string]string{"main.tex": "x"})
	s := newService(t, testutil.CopyEngine, WithWatcher(&fakeWatcher{err: errors.New("too many files")}))
	if _, err := s.OpenProject(context.Background(), store.Root()); err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
}

func TestOpenProject_Errors(t *testing.T) {
	s := newService(t, testutil.CopyEngine)
	_, err := s.OpenProject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing dir err = %v", err)
	}

	store := testutil.TestProject(t, map[string]string{"file.tex": "x"})
	_, err = s.OpenProject(context.Background(), filepath.Join(store.Root(), "file.tex"))
	if !errors.Is(err, apperr.ErrNotDirectory) {
		t.Errorf("file err = %v", err)
	}
}

func TestReadWriteFile(t *testing.T) {
	store := testutil.TestProject(t, nil)
	s := newService(t, testutil.CopyEngine)
	ctx := context.Background()

	if err := s.WriteFile(ctx, store.Root(), "sections/intro.tex", "Hello é"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := s.ReadFile(ctx, store.Root(), "sections/intro.tex")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "Hello é" {
		t.Errorf("content = %q", got)
	}
}

func TestReadFile_Rejections(t *testing.T) {
	store := testutil.TestProject(t, map[string]string{
		"bin.dat":          "\xff\xfe\x00",
		"chapters/one.tex": "One",
	})
	outside := filepath.Join(filepath.Dir(store.Root()), "secret.txt")
	if err := os.WriteFile(outside, []byte("secret"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := newService(t, testutil.CopyEngine)
	ctx := context.Background()

	cases := []struct {
		name string
		file string
		want error
	}{
		{"traversal", "../secret.txt", apperr.ErrAccessDenied},
		{"missing", "nope.tex", apperr.ErrNotFound},
		{"empty", "", apperr.ErrInvalidInput},
		{"binary", "bin.dat", apperr.ErrInvalidInput},
		{"directory", "chapters", apperr.ErrInvalidInput},
		{"root", ".", apperr.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ReadFile(ctx, store.Root(), tc.file)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWriteFile_Traversal(t *testing.T) {
	store := testutil.TestProject(t, nil)
	s := newService(t, testutil.CopyEngine)
	err := s.WriteFile(context.Background(), store.Root(), "../../evil.tex", "x")
	if !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("err = %v, want access denied", err)
	}
}

func TestProjectMeta(t *testing.T) {
	store := testutil.TestProject(t, nil)
	s := newService(t, testutil.CopyEngine)
	ctx := context.Background()

	m, err := s.LoadProjectMeta(ctx, store.Root())
	if err != nil {
		t.Fatalf("LoadProjectMeta: %v", err)
	}
	if m.RootFile != models.DefaultRootFile || m.LastOpenedFile != nil {
		t.Errorf("defaults = %+v", m)
	}

	last := "chapters/one.tex"
	m.LastOpenedFile = &last
	m.RootFile = "thesis.tex"
	m.ProjectSettings = json.RawMessage(`{"engine":"xetex"}`)
	if err := s.SaveProjectMeta(ctx, store.Root(), m); err != nil {
		t.Fatalf("SaveProjectMeta: %v", err)
	}

	got, err := s.LoadProjectMeta(ctx, store.Root())
	if err != nil {
		t.Fatalf("LoadProjectMeta: %v", err)
	}
	if got.RootFile != "thesis.tex" || got.LastOpenedFile == nil || *got.LastOpenedFile != last {
		t.Errorf("reloaded = %+v", got)
	}
}

func TestGlobalSettings(t *testing.T) {
	s := newService(t, testutil.CopyEngine)
	ctx := context.Background()

	gs, err := s.LoadGlobalSettings(ctx)
	if err != nil {
		t.Fatalf("LoadGlobalSettings: %v", err)
	}
	if gs.RecentProjects == nil || len(gs.RecentProjects) != 0 {
		t.Errorf("recent = %v", gs.RecentProjects)
	}

	gs.RecentProjects = []string{"/a", "/b"}
	if err := s.SaveGlobalSettings(ctx, gs); err != nil {
		t.Fatalf("SaveGlobalSettings: %v", err)
	}
	got, err := s.LoadGlobalSettings(ctx)
	if err != nil {
		t.Fatalf("LoadGlobalSettings: %v", err)
	}
	if strings.Join(got.RecentProjects, ",") != "/a,/b" {
		t.Errorf("recent = %v", got.RecentProjects)
	}
}

func TestCompileProject_ThenPDF(t *testing.T) {
	store := testutil.TestProject(t, nil)
	s := newService(t, testutil.CopyEngine)
	ctx := context.Background()

	loc, err := s.PDFExists(ctx, store.Root(), "main.tex")
	if err != nil {
		t.Fatalf("PDFExists: %v", err)
	}
	if loc.Exists || loc.Path != "" {
		t.Errorf("before compile = %+v", loc)
	}
	if _, err := s.LoadPDF(ctx, store.Root(), "main.tex"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("LoadPDF before compile err = %v", err)
	}

	pdf, err := s.CompileProject(ctx, store.Root(), "main.tex", testutil.MinimalDocument)
	if err != nil {
		t.Fatalf("CompileProject: %v", err)
	}

	loc, err = s.PDFExists(ctx, store.Root(), "main.tex")
	if err != nil {
		t.Fatalf("PDFExists: %v", err)
	}
	want := filepath.Join(store.Root(), "build", "main.pdf")
	if !loc.Exists || loc.Path != want {
		t.Errorf("after compile = %+v, want path %s", loc, want)
	}

	loaded, err := s.LoadPDF(ctx, store.Root(), "main.tex")
	if err != nil {
		t.Fatalf("LoadPDF: %v", err)
	}
	if string(loaded) != string(pdf) {
		t.Error("LoadPDF differs from compile output")
	}
}

func TestCompileStandalone(t *testing.T) {
	s := newService(t, testutil.CopyEngine)
	pdf, err := s.CompileStandalone(context.Background(), testutil.MinimalDocument)
	if err != nil {
		t.Fatalf("CompileStandalone: %v", err)
	}
	if string(pdf) != testutil.MinimalDocument {
		t.Errorf("output = %q", pdf)
	}
}

func TestPDFExists_Traversal(t *testing.T) {
	store := testutil.TestProject(t, nil)
	s := newService(t, testutil.CopyEngine)
	_, err := s.PDFExists(context.Background(), store.Root(), "../other/main.tex")
	if !errors.Is(err, apperr.ErrAccessDenied) {
		t.Fatalf("err = %v, want access denied", err)
	}
}

func TestCompileHistory(t *testing.T) {
	db := testutil.TestHistory(t)
	record := compile.OnFinish(func(rec models.CompileRecord) {
		if err := db.Record(rec); err != nil {
			t.Errorf("record: %v", err)
		}
	})
	s := newServiceWith(t, testutil.CopyEngine, []compile.Option{record}, WithHistory(db))
	ctx := context.Background()

	a := testutil.TestProject(t, nil)
	b := testutil.TestProject(t, nil)
	if _, err := s.CompileProject(ctx, a.Root(), "main.tex", testutil.MinimalDocument); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CompileProject(ctx, b.Root(), "main.tex", testutil.MinimalDocument); err != nil {
		t.Fatal(err)
	}

	all, err := s.CompileHistory(ctx, "", 10)
	if err != nil {
		t.Fatalf("CompileHistory: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d records, want 2", len(all))
	}

	onlyA, err := s.CompileHistory(ctx, a.Root(), 10)
	if err != nil {
		t.Fatalf("CompileHistory: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].Project != a.Root() || !onlyA[0].Success {
		t.Errorf("project a history = %+v", onlyA)
	}
}

func TestCompileHistory_Disabled(t *testing.T) {
	s := newService(t, testutil.CopyEngine)
	got, err := s.CompileHistory(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v, want empty slice", got)
	}
}
