package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	v := viper.New()
	BindFlags(v, func(key, flag string) {})

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Mode)
	assert.Equal(t, 8088, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "Europe/Istanbul", cfg.BotTimezone)
	assert.Equal(t, RateLimit{Requests: 30, Per: time.Minute}, cfg.ChatRateLimit)
	assert.Equal(t, 1536, cfg.QdrantVectorSize)
	assert.Equal(t, "Cosine", cfg.QdrantDistance)
	assert.Equal(t, 30, cfg.LLMTimeoutSeconds)
}

func TestLoad_EnvOverridesDefault(t *testing.T) {
	v := viper.New()
	BindFlags(v, func(key, flag string) {})
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/db")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(v)

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/db", cfg.DatabaseURL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestParseRateLimit(t *testing.T) {
	cases := []struct {
		spec    string
		want    RateLimit
		wantErr bool
	}{
		{spec: "30/minute", want: RateLimit{Requests: 30, Per: time.Minute}},
		{spec: "5/second", want: RateLimit{Requests: 5, Per: time.Second}},
		{spec: "1/hour", want: RateLimit{Requests: 1, Per: time.Hour}},
		{spec: "bad", wantErr: true},
		{spec: "x/minute", wantErr: true},
		{spec: "5/fortnight", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.spec, func(t *testing.T) {
			got, err := parseRateLimit(tc.spec)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidate_RequiresDatabaseURL(t *testing.T) {
	cfg := &Config{LLMAPIKey: "key"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_RequiresLLMAPIKey(t *testing.T) {
	cfg := &Config{DatabaseURL: "file:test.db"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LLM_API_KEY")
}

func TestValidate_RejectsShortEncryptionKey(t *testing.T) {
	cfg := &Config{DatabaseURL: "file:test.db", LLMAPIKey: "key", CredentialEncryptionKey: "tooshort"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CREDENTIAL_ENCRYPTION_KEY")
}

func TestValidate_AcceptsAnyLengthKeyAtOrAboveMinimum(t *testing.T) {
	cfg := &Config{DatabaseURL: "file:test.db", LLMAPIKey: "key", CredentialEncryptionKey: "exactly-16-bytes"}
	assert.NoError(t, cfg.Validate())

	cfg.CredentialEncryptionKey = "a much longer passphrase used as the HKDF input secret"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_EmptyEncryptionKeyIsOptional(t *testing.T) {
	cfg := &Config{DatabaseURL: "file:test.db", LLMAPIKey: "key"}
	assert.NoError(t, cfg.Validate())
}

func TestIsDev_AndAdminEnabled(t *testing.T) {
	cfg := &Config{Mode: "dev"}
	assert.True(t, cfg.IsDev())

	cfg.Mode = "prod"
	assert.False(t, cfg.IsDev())

	assert.False(t, cfg.AdminEnabled())
	cfg.AdminAPIKey = "secret"
	assert.True(t, cfg.AdminEnabled())
}
