package config

import "sync"

var (
	storageOnce   sync.Once
	storageConfig *StorageConfig
)

// StorageConfig configures the object store holding document source files.
type StorageConfig struct {
	// Backend is "s3" or "minio".
	Backend    string
	BucketName string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
}

func GetStorageConfig() *StorageConfig {
	storageOnce.Do(func() {
		loadEnv()

		storageConfig = &StorageConfig{
			Backend:    getEnv("STORAGE_BACKEND", "minio"),
			BucketName: getEnv("STORAGE_BUCKET", "project-documents"),
			Region:     getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
			UseSSL:     getEnvBool("STORAGE_USE_SSL", false),
		}
	})
	return storageConfig
}
