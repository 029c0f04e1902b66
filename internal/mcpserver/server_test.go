package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/incipit/internal/commands"
	"github.com/starford/incipit/internal/compile"
	"github.com/starford/incipit/internal/history"
	"github.com/starford/incipit/internal/meta"
	"github.com/starford/incipit/internal/models"
	"github.com/starford/incipit/internal/storage"
	"github.com/starford/incipit/internal/testutil"
)

func testServer(t *testing.T, engine string) (*Server, storage.Provider) {
	t.Helper()

	store := testutil.TestProject(t, map[string]string{
		"main.tex":         testutil.MinimalDocument,
		"chapters/one.tex": "One",
	})
	db := testutil.TestHistory(t)

	sub := compile.NewSubprocess(testutil.FakeEngine(t, engine), testutil.EngineArgs, nil)
	d := compile.NewDispatcher(sub, compile.OnFinish(func(rec models.CompileRecord) {
		_ = db.Record(rec)
	}))
	svc := commands.NewService(d,
		meta.NewSettingsStore(filepath.Join(t.TempDir(), "config")),
		commands.WithHistory(history.Store(db)),
	)
	return New(svc, "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go has no direct "call tool" test helper, so the handlers are
	// invoked directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "open_project":
		result, err = srv.openProject(ctx, req)
	case "read_file":
		result, err = srv.readFile(ctx, req)
	case "write_file":
		result, err = srv.writeFile(ctx, req)
	case "compile_project":
		result, err = srv.compileProject(ctx, req)
	case "load_project_meta":
		result, err = srv.loadProjectMeta(ctx, req)
	case "compile_history":
		result, err = srv.compileHistory(ctx, req)
	case "upload_asset":
		result, err = srv.uploadAsset(ctx, req)
	case "get_project_layout":
		result, err = srv.getProjectLayout(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestOpenProject(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)
	r := callTool(t, srv, "open_project", map[string]any{"project_path": store.Root()})
	if r.IsError {
		t.Fatalf("open_project: %s", resultText(r))
	}
	var tree models.FileNode
	if err := json.Unmarshal([]byte(resultText(r)), &tree); err != nil {
		t.Fatal(err)
	}
	if len(tree.Children) != 2 || tree.Children[0].Name != "chapters" {
		t.Errorf("tree = %+v", tree)
	}
}

func TestWriteAndReadFile(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)

	r := callTool(t, srv, "write_file", map[string]any{
		"project_path": store.Root(),
		"path":         "chapters/two.tex",
		"content":      "Two",
	})
	if text := resultText(r); text != "saved: chapters/two.tex" {
		t.Errorf("write result = %q", text)
	}

	r = callTool(t, srv, "read_file", map[string]any{
		"project_path": store.Root(),
		"path":         "chapters/two.tex",
	})
	if text := resultText(r); text != "Two" {
		t.Errorf("read result = %q", text)
	}
}

func TestReadFile_Errors(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)

	r := callTool(t, srv, "read_file", map[string]any{"project_path": store.Root(), "path": "nope.tex"})
	if !r.IsError {
		t.Error("expected error for missing file")
	}
	r = callTool(t, srv, "read_file", map[string]any{"project_path": store.Root(), "path": "../../etc/passwd"})
	if !r.IsError {
		t.Error("expected error for traversal")
	}
	r = callTool(t, srv, "read_file", map[string]any{"project_path": store.Root()})
	if !r.IsError {
		t.Error("expected error for missing path argument")
	}
}

func TestCompileProject_DefaultsToRootFile(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)

	r := callTool(t, srv, "compile_project", map[string]any{"project_path": store.Root()})
	if r.IsError {
		t.Fatalf("compile_project: %s", resultText(r))
	}
	text := resultText(r)
	if !strings.HasPrefix(text, "compiled main.tex:") || !strings.HasSuffix(text, "build/main.pdf") {
		t.Errorf("result = %q", text)
	}

	r = callTool(t, srv, "compile_history", map[string]any{"project_path": store.Root()})
	var recs []models.CompileRecord
	if err := json.Unmarshal([]byte(resultText(r)), &recs); err != nil {
		t.Fatalf("history: %v (%s)", err, resultText(r))
	}
	if len(recs) != 1 || !recs[0].Success || recs[0].File != "main.tex" {
		t.Errorf("history = %+v", recs)
	}
}

func TestCompileProject_WithSource(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)
	r := callTool(t, srv, "compile_project", map[string]any{
		"project_path": store.Root(),
		"path":         "chapters/one.tex",
		"source":       "Updated",
	})
	if r.IsError {
		t.Fatalf("compile_project: %s", resultText(r))
	}
	data, _ := os.ReadFile(filepath.Join(store.Root(), "chapters", "one.tex"))
	if string(data) != "Updated" {
		t.Errorf("source not saved: %q", data)
	}
}

func TestCompileProject_Failure(t *testing.T) {
	srv, store := testServer(t, testutil.FailingEngine)
	r := callTool(t, srv, "compile_project", map[string]any{"project_path": store.Root(), "path": "main.tex"})
	if !r.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(resultText(r), "Undefined control sequence") {
		t.Errorf("result should carry the engine log: %q", resultText(r))
	}
}

func TestLoadProjectMeta(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)
	r := callTool(t, srv, "load_project_meta", map[string]any{"project_path": store.Root()})
	var m models.ProjectMeta
	if err := json.Unmarshal([]byte(resultText(r)), &m); err != nil {
		t.Fatal(err)
	}
	if m.RootFile != "main.tex" {
		t.Errorf("root_file = %q", m.RootFile)
	}
}

func TestCompileHistory_Empty(t *testing.T) {
	srv, _ := testServer(t, testutil.CopyEngine)
	r := callTool(t, srv, "compile_history", map[string]any{})
	if text := resultText(r); text != "no compiles recorded" {
		t.Errorf("result = %q", text)
	}
}

func TestUploadAsset_DataURI(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)

	r := callTool(t, srv, "upload_asset", map[string]any{
		"project_path": store.Root(),
		"url":          uri,
		"filename":     "diagram.png",
	})
	if r.IsError {
		t.Fatalf("upload_asset: %s", resultText(r))
	}
	var asset models.Asset
	_ = json.Unmarshal([]byte(resultText(r)), &asset)
	if asset.Path != "figures/diagram.png" || asset.Include != `\includegraphics{figures/diagram}` {
		t.Errorf("asset = %+v", asset)
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "figures", "diagram.png")); err != nil {
		t.Errorf("asset not on disk: %v", err)
	}
}

func TestUploadAsset_Rejected(t *testing.T) {
	srv, store := testServer(t, testutil.CopyEngine)
	cases := []string{
		"data:text/plain;base64,aGVsbG8=",
		"data:image/png,raw",
		"ftp://example.com/a.png",
		"http://127.0.0.1/a.png",
	}
	for _, uri := range cases {
		r := callTool(t, srv, "upload_asset", map[string]any{"project_path": store.Root(), "url": uri})
		if !r.IsError {
			t.Errorf("%s: expected error", uri)
		}
	}
}

func TestCheckBlockedHost(t *testing.T) {
	blocked := []string{
		"127.0.0.1",
		"::1",
		"0.0.0.0",
		"::",
		"10.0.0.5",
		"172.16.0.1",
		"192.168.1.1",
		"169.254.1.1",
		"169.254.169.254",
		"fd00::1",
		"fe80::1",
		"ff02::1",
		"metadata.google.internal",
	}
	for _, host := range blocked {
		if err := checkBlockedHost(host); err == nil {
			t.Errorf("%s: expected blocked", host)
		}
	}

	allowed := []string{"93.184.216.34", "2606:4700:4700::1111"}
	for _, host := range allowed {
		if err := checkBlockedHost(host); err != nil {
			t.Errorf("%s: unexpected error: %v", host, err)
		}
	}
}

func TestFetchHTTP_LocalServerRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	defer ts.Close()

	port := ts.URL[strings.LastIndex(ts.URL, ":")+1:]
	for _, host := range []string{"127.0.0.1", "0.0.0.0", "[::]"} {
		if _, _, err := fetchHTTP(context.Background(), "http://"+host+":"+port+"/x.png"); err == nil {
			t.Errorf("%s: expected fetch to be refused", host)
		}
	}
}

func TestGuardedTransport_RefusesDial(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := &http.Client{Transport: guardedTransport()}
	resp, err := client.Get(ts.URL)
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("expected dial to loopback to be refused")
	}
	if !strings.Contains(err.Error(), "blocked host") {
		t.Errorf("error = %v", err)
	}
}

func TestFilenameFromURL(t *testing.T) {
	if got := filenameFromURL("https://example.com/img/plot.png?x=1", ""); got != "plot.png" {
		t.Errorf("got %q", got)
	}
	if got := filenameFromURL("data:image/png;base64,AAAA", ".png"); !strings.HasSuffix(got, ".png") || len(got) < 10 {
		t.Errorf("got %q", got)
	}
}

func TestGetProjectLayout(t *testing.T) {
	srv, _ := testServer(t, testutil.CopyEngine)
	r := callTool(t, srv, "get_project_layout", nil)
	if !strings.Contains(resultText(r), "root_file") {
		t.Error("layout contract missing root_file section")
	}
}
