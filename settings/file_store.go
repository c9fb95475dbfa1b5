package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// FileStore keeps one JSON file per key under <dir>/<user>/.
type FileStore struct {
	dir string
}

func NewFileStore(dir, user string) (*FileStore, error) {
	if user == "" {
		user = "default"
	}
	userDir := filepath.Join(dir, sanitize(user))
	if err := os.MkdirAll(userDir, 0o700); err != nil {
		return nil, fmt.Errorf("unable to create settings directory: %w", err)
	}
	return &FileStore{dir: userDir}, nil
}

func (s *FileStore) Load(key string, v interface{}) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, v)
}

func (s *FileStore) Save(key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	// write to a temporary file first so readers never see a partial value
	tmp, err := os.CreateTemp(s.dir, ".settings-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(key))
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, sanitize(key)+".json")
}

func sanitize(name string) string {
	return unsafeKeyChars.ReplaceAllString(name, "_")
}
