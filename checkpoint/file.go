package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"mealmind/router"
)

// threadIDPattern keeps thread ids from escaping the checkpoint directory.
var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// FileStore keeps one JSON document per thread under a directory.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (f *FileStore) path(threadID string) (string, error) {
	if !threadIDPattern.MatchString(threadID) {
		return "", fmt.Errorf("invalid thread id %q", threadID)
	}
	return filepath.Join(f.Dir, threadID+".json"), nil
}

func (f *FileStore) Save(ctx context.Context, threadID string, state *router.ConversationState) error {
	path, err := f.path(threadID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	// Write-then-rename so a crash mid-write never leaves a torn checkpoint.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

func (f *FileStore) Load(ctx context.Context, threadID string) (*router.ConversationState, bool, error) {
	path, err := f.path(threadID)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	var state router.ConversationState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &state, true, nil
}
