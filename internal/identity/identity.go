// Package identity provides the stable client identifier reported with
// every payload. The identifier is generated once and persisted so the
// collector sees the same client across restarts.
package identity

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FileName is the identity file kept inside the storage directory.
const FileName = "client-id.txt"

// GetOrCreate returns the identifier stored in dir, creating and persisting
// a new one on first run. Storage problems never fail the caller: a fresh
// ephemeral identifier is returned instead and the condition is logged.
func GetOrCreate(dir string, logger *zap.Logger) string {
	path := filepath.Join(dir, FileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
		logger.Warn("Client ID file is empty, generating a new ID", zap.String("file", path))
	} else if !errors.Is(err, os.ErrNotExist) {
		id := uuid.NewString()
		logger.Warn("Failed to read client ID, using ephemeral ID",
			zap.String("file", path),
			zap.String("client_id", id),
			zap.Error(err))
		return id
	}

	id := uuid.NewString()

	if err := os.MkdirAll(dir, 0750); err != nil {
		logger.Warn("Failed to create identity directory, client ID will not persist",
			zap.String("dir", dir),
			zap.Error(err))
		return id
	}
	if err := os.WriteFile(path, []byte(id), 0640); err != nil {
		logger.Warn("Failed to persist client ID, client ID will not persist",
			zap.String("file", path),
			zap.Error(err))
		return id
	}

	logger.Info("Generated new client ID", zap.String("client_id", id))
	return id
}
