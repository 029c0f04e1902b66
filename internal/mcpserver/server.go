// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the editor commands as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/incipit/internal/commands"
)

// LayoutURI is the resource URI of ProjectLayoutContract.
const LayoutURI = "incipit://project-layout"

// Server wraps the MCP server with incipit tools.
type Server struct {
	mcp *server.MCPServer
	svc *commands.Service
}

// New creates a new MCP server with all incipit tools registered.
func New(svc *commands.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Incipit",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("open_project",
		mcp.WithDescription("Open a LaTeX project directory and return its file tree as JSON. "+
			"Hidden files and the .incipit metadata file are omitted."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
	), s.openProject)

	s.mcp.AddTool(mcp.NewTool("read_file",
		mcp.WithDescription("Read a UTF-8 text file from the project."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the project (e.g. chapters/intro.tex)")),
	), s.readFile)

	s.mcp.AddTool(mcp.NewTool("write_file",
		mcp.WithDescription("Create or overwrite a text file in the project. Parent directories are created."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
		mcp.WithString("path", mcp.Required(), mcp.Description("File path relative to the project")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full new file content")),
	), s.writeFile)

	s.mcp.AddTool(mcp.NewTool("compile_project",
		mcp.WithDescription("Compile a project file to PDF. When source is given it is saved to the file first. "+
			"Returns the output location, or the engine log on failure. Read the layout first via "+
			"the get_project_layout tool or the "+LayoutURI+" resource."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
		mcp.WithString("path", mcp.Description("File to compile (default: root_file from the project metadata)")),
		mcp.WithString("source", mcp.Description("Optional new content of the file")),
	), s.compileProject)

	s.mcp.AddTool(mcp.NewTool("load_project_meta",
		mcp.WithDescription("Return the project metadata (root_file, last_opened_file, project_settings)."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
	), s.loadProjectMeta)

	s.mcp.AddTool(mcp.NewTool("compile_history",
		mcp.WithDescription("List recent compiles, newest first."),
		mcp.WithString("project_path", mcp.Description("Restrict to one project (empty for all)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records")),
	), s.compileHistory)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Import an image or PDF figure into the project from a data: URI or http(s) URL."),
		mcp.WithString("project_path", mcp.Required(), mcp.Description("Absolute path of the project directory")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:<mime>;base64,... or http(s) URL")),
		mcp.WithString("filename", mcp.Description("File name to save as (derived from the URL when empty)")),
		mcp.WithString("dir", mcp.Description("Target directory relative to the project (default figures)")),
	), s.uploadAsset)

	s.mcp.AddTool(mcp.NewTool("get_project_layout",
		mcp.WithDescription("Returns the incipit project layout contract. "+
			"Call this before editing or compiling a project."),
	), s.getProjectLayout)

	// Resource: project layout contract.
	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Project Layout",
			mcp.WithResourceDescription("How incipit projects are laid out and compiled."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) openProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tree, err := s.svc.OpenProject(ctx, root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tree)
}

func (s *Server) readFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.ReadFile(ctx, root, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) writeFile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.WriteFile(ctx, root, path, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", path)), nil
}

func (s *Server) compileProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path := req.GetString("path", "")
	if path == "" {
		m, err := s.svc.LoadProjectMeta(ctx, root)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		path = m.RootFile
	}
	source := req.GetString("source", "")
	if source == "" {
		if source, err = s.svc.ReadFile(ctx, root, path); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	pdf, err := s.svc.CompileProject(ctx, root, path, source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	loc, err := s.svc.PDFExists(ctx, root, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("compiled %s: %d bytes written to %s", path, len(pdf), filepath.ToSlash(loc.Path))), nil
}

func (s *Server) loadProjectMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, err := req.RequireString("project_path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.LoadProjectMeta(ctx, root)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(m)
}

func (s *Server) compileHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := s.svc.CompileHistory(ctx, req.GetString("project_path", ""), req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(recs) == 0 {
		return mcp.NewToolResultText("no compiles recorded"), nil
	}
	return jsonResult(recs)
}

func (s *Server) getProjectLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ProjectLayoutContract), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     ProjectLayoutContract,
		},
	}, nil
}
