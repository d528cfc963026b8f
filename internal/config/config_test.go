package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaultsWithEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.JWT.AccessTokenExpire)
	assert.Equal(t, "local", cfg.Storage.Driver)
	assert.Contains(t, cfg.Database.DSN(), "host=db.internal")
}

func TestLoadRequiresSecret(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadReadsYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0755))
	yaml := `
jwt:
  secret: from-file
database:
  driver: sqlite
  path: /tmp/procurement.db
classifiers:
  realization_status:
    SUSPENDED: [suspendu, gelé]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(yaml), 0644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWT.Secret)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"suspendu", "gelé"}, cfg.Classifiers["realization_status"]["suspended"])
}

func TestValidateStorageDriver(t *testing.T) {
	cfg := &Config{
		JWT:      JWTConfig{Secret: "s"},
		Database: DatabaseConfig{Driver: "postgres"},
		Storage:  StorageConfig{Driver: "minio"},
	}
	assert.Error(t, cfg.Validate())

	cfg.Storage.MinIO.Endpoint = "minio:9000"
	assert.NoError(t, cfg.Validate())
}

func TestClassifierOverrides(t *testing.T) {
	cfg := &Config{Classifiers: map[string]map[string][]string{
		"procurement_nature": {"infrastructure_nature": {"ouvrage"}},
	}}
	assert.Equal(t, map[string][]string{"INFRASTRUCTURE_NATURE": {"ouvrage"}}, cfg.ClassifierOverrides("procurement_nature"))
	assert.Nil(t, cfg.ClassifierOverrides("contract_type"))
}
