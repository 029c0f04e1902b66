package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Compile compiles one file of a project and prints where the PDF went.
// file is relative to the working directory; an empty project means the
// directory containing file.
func Compile(ctx context.Context, project, file string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	c, err := build(app.config, logger, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	abs, err := filepath.Abs(file)
	if err != nil {
		return err
	}
	if project == "" {
		project = filepath.Dir(abs)
	}
	root, err := filepath.Abs(project)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return err
	}
	file = filepath.ToSlash(rel)

	source, err := c.svc.ReadFile(ctx, root, file)
	if err != nil {
		return err
	}
	pdf, err := c.svc.CompileProject(ctx, root, file, source)
	if err != nil {
		return err
	}
	loc, err := c.svc.PDFExists(ctx, root, file)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "%s (%d bytes)\n", loc.Path, len(pdf))
	return err
}

// Tree prints the file tree of a project directory as indented JSON.
func Tree(ctx context.Context, dir string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(app.config, os.Stderr)

	c, err := build(app.config, logger, buildOptions{})
	if err != nil {
		return err
	}
	defer c.Close()

	tree, err := c.svc.OpenProject(ctx, dir)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(app.out)
	enc.SetIndent("", "  ")
	return enc.Encode(tree)
}
