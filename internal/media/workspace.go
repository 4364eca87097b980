package media

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is job-scoped temporary storage for downloaded media and derived
// audio. Namespacing by job ID keeps concurrent jobs from colliding; Cleanup
// must run on every exit path.
type Workspace struct {
	Dir   string
	JobID string
}

// NewWorkspace creates the temp directory for one job.
func NewWorkspace(basePath, jobID string) (*Workspace, error) {
	dir := filepath.Join(basePath, jobID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{Dir: dir, JobID: jobID}, nil
}

// Cleanup removes the workspace and everything in it.
func (w *Workspace) Cleanup() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	err := os.RemoveAll(w.Dir)
	w.Dir = ""
	return err
}
