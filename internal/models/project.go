// Package models defines the domain types shared by the incipit backend.
package models

import "encoding/json"

// ProjectMetaFile is the hidden per-project metadata file kept at the project root.
const ProjectMetaFile = ".incipit"

// DefaultRootFile is the root document assumed for projects without metadata.
const DefaultRootFile = "main.tex"

// FileNode is one entry of a project file tree.
// Path is slash-separated and relative to the project root; the root node has Path "".
// Files have nil Children; directories always carry a (possibly empty) slice.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*FileNode `json:"children,omitzero"`
}

// ProjectMeta is the per-project state persisted in ProjectMetaFile.
type ProjectMeta struct {
	LastOpenedFile  *string         `json:"last_opened_file"`
	RootFile        string          `json:"root_file"`
	ProjectSettings json.RawMessage `json:"project_settings"`
}

// NewProjectMeta returns a ProjectMeta holding the documented defaults.
func NewProjectMeta() *ProjectMeta {
	return &ProjectMeta{
		RootFile:        DefaultRootFile,
		ProjectSettings: emptyObject(),
	}
}

// GlobalSettings is the per-user state persisted in the user config directory.
type GlobalSettings struct {
	RecentProjects []string        `json:"recent_projects"`
	EditorSettings json.RawMessage `json:"editor_settings"`
}

// NewGlobalSettings returns a GlobalSettings holding the documented defaults.
func NewGlobalSettings() *GlobalSettings {
	return &GlobalSettings{
		RecentProjects: []string{},
		EditorSettings: emptyObject(),
	}
}

// PDFLocation reports where the compiled output of a source file lives.
type PDFLocation struct {
	Exists bool   `json:"exists"`
	Path   string `json:"path,omitempty"`
}

func emptyObject() json.RawMessage {
	return json.RawMessage(`{}`)
}

// Asset is a binary file imported into a project, such as a figure.
type Asset struct {
	Path    string `json:"path"`
	Size    int    `json:"size"`
	Include string `json:"include"`
}
