package history

import "github.com/starford/incipit/internal/models"

// Store is the compile history consumed by the command layer.
type Store interface {
	Record(rec models.CompileRecord) error
	Recent(project string, limit int) ([]models.CompileRecord, error)
	Prune(keep int) (int64, error)
	Close() error
}

var _ Store = (*DB)(nil)
