package config

import "path/filepath"

type StorageConfig interface {
	GetStorageDriver() string
	GetStoragePath() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

// GetStorageDriver selects the durable session storage: "file", "sqlite" or "memory".
func (Storage) GetStorageDriver() string {
	return GetEnv("STORAGE_DRIVER", "file")
}

func (Storage) GetStoragePath() string {
	def := filepath.Join(EnvVars{}.GetDataFolder(), "session.json")
	if (Storage{}).GetStorageDriver() == "sqlite" {
		def = filepath.Join(EnvVars{}.GetDataFolder(), "session.db")
	}
	return GetEnv("STORAGE_PATH", def)
}
