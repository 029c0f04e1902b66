package mcpserver

// ProjectLayoutContract describes how an incipit project is laid out so that
// LLM consumers edit and compile it the way the editor does.
const ProjectLayoutContract = `# Incipit Project Layout

An incipit project is a plain directory of LaTeX sources. Every tool takes the
absolute project directory as ` + "`" + `project_path` + "`" + ` and file paths relative to it.

## Files

- **Root document.** The file compiled by default is ` + "`" + `root_file` + "`" + ` from the project
  metadata (` + "`" + `load_project_meta` + "`" + `), ` + "`" + `main.tex` + "`" + ` when no metadata exists.
- **Metadata.** ` + "`" + `.incipit` + "`" + ` at the project root holds JSON with ` + "`" + `last_opened_file` + "`" + `,
  ` + "`" + `root_file` + "`" + ` and ` + "`" + `project_settings` + "`" + `. Do not edit it through ` + "`" + `write_file` + "`" + `.
- **Hidden entries.** Names starting with ` + "`" + `.` + "`" + ` never appear in the file tree.
- **Build output.** Compiling ` + "`" + `chapters/intro.tex` + "`" + ` produces ` + "`" + `build/intro.pdf` + "`" + `.
  The engine runs with the project root as working directory, so ` + "`" + `\input` + "`" + ` and
  ` + "`" + `\includegraphics` + "`" + ` paths are relative to the root.
- **Figures.** Import images with ` + "`" + `upload_asset` + "`" + `. They land in ` + "`" + `figures/` + "`" + ` unless
  another directory is given; the result carries a ready ` + "`" + `\includegraphics` + "`" + ` line.
  Supported formats: png, jpg, jpeg, pdf.

## Rules

1. Paths use forward slashes and never leave the project (` + "`" + `..` + "`" + ` is rejected).
2. Files are UTF-8 text.
3. ` + "`" + `compile_project` + "`" + ` saves the given source before compiling; the file stays saved
   even when compilation fails.
4. A failed compile returns the engine log. Fix the first reported error first.
`
