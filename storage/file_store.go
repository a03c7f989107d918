package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/google/uuid"
)

var ErrFileNotFound = errors.New("file not found")

type FileStore interface {
	Save(ctx context.Context, key string, reader io.Reader, size int64) error
	Open(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MakeFileKey builds a unique storage key for an uploaded file of a project.
func MakeFileKey(projectCode string, fileName string) string {
	return fmt.Sprintf("%s/%s_%s", projectCode, uuid.NewString(), utils.SanitizeFileName(fileName))
}

func NewFsFileStore(baseDir string) (FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads dir %s: %w", baseDir, err)
	}
	return &fsFileStoreImpl{baseDir: baseDir}, nil
}

type fsFileStoreImpl struct {
	baseDir string
}

func (f fsFileStoreImpl) Save(ctx context.Context, key string, reader io.Reader, size int64) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err = io.Copy(file, reader); err != nil {
		return fmt.Errorf("failed to write file %s: %w", key, err)
	}
	return nil
}

func (f fsFileStoreImpl) Open(ctx context.Context, key string) ([]byte, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrFileNotFound
		}
		return nil, err
	}
	return data, nil
}

func (f fsFileStoreImpl) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (f fsFileStoreImpl) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid file key %s", key)
	}
	return filepath.Join(f.baseDir, clean), nil
}
