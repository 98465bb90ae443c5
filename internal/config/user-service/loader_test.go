package user_service_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadDefaults(t *testing.T) {
	p := writeYAML(t, `
auth:
  access_secret: a-secret
  refresh_secret: r-secret
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 5*time.Minute, cfg.Auth.SignupOTPTTL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.ResetOTPTTL)
	assert.False(t, cfg.Auth.RotateRefresh)
	assert.Equal(t, "jobportal.mail", cfg.Kafka.MailTopic)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.WaitTime)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadSecretsFromEnv(t *testing.T) {
	t.Setenv("AUTH_ACCESS_SECRET", "env-a")
	t.Setenv("AUTH_REFRESH_SECRET", "env-r")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-a", cfg.Auth.AccessSecret)
	assert.Equal(t, "env-r", cfg.Auth.RefreshSecret)
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	_, err := Load(writeYAML(t, "log:\n  level: debug\n"))
	assert.ErrorIs(t, err, ErrNoSecrets)
}

func TestLoadRejectsSharedSecret(t *testing.T) {
	_, err := Load(writeYAML(t, `
auth:
  access_secret: same
  refresh_secret: same
`))
	assert.ErrorIs(t, err, ErrSecretsEqual)
}
