package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
source:
  endpoint: swift.example.com:8080
  access_key: src-key
  secret_key: src-secret
  container: photos
dest:
  endpoint: s3.example.com
  access_key: dst-key
  secret_key: dst-secret
  region: eu-west-1
  bucket: archive
  secure: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "photos", cfg.Source.Container)
	assert.Equal(t, "archive", cfg.Dest.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Dest.Region)
	assert.Equal(t, 8, cfg.Transfer.Concurrency)
	assert.Equal(t, int64(100), cfg.Transfer.BandwidthMBps)
	assert.Equal(t, 3, cfg.Transfer.MaxAttempts)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.Transfer.StageDir)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML+`
transfer:
  concurrency: 32
  bandwidth_mbps: 5
  max_attempts: 7
`), nil)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Transfer.Concurrency)
	assert.Equal(t, int64(5), cfg.Transfer.BandwidthMBps)
	assert.Equal(t, 7, cfg.Transfer.MaxAttempts)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing container", `
source:
  endpoint: swift.example.com
  access_key: k
  secret_key: s
dest:
  endpoint: s3.example.com
  access_key: k
  secret_key: s
  bucket: b
`, "container"},
		{"missing bucket", `
source:
  endpoint: swift.example.com
  access_key: k
  secret_key: s
  container: c
dest:
  endpoint: s3.example.com
  access_key: k
  secret_key: s
`, "bucket"},
		{"zero concurrency", validYAML + `
transfer:
  concurrency: 0
`, "concurrency"},
		{"zero bandwidth", validYAML + `
transfer:
  bandwidth_mbps: 0
`, "bandwidth"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}
