package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yml")

	require.NoError(t, Init(path, false))
	require.True(t, fileExists(path))

	conf, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Instance, conf.Instance)
	assert.Equal(t, def.Server, conf.Server)
	assert.Equal(t, def.Throttle, conf.Throttle)
	assert.Equal(t, def.Encryption, conf.Encryption)
	assert.Equal(t, def.Oracle.Threshold, conf.Oracle.Threshold)
	assert.Empty(t, conf.Policy.Administrators)
}

func TestInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, Init(path, false))

	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	golden := `
instance: "0x00000000000000000000000000000000000000aa"
server:
  address: ":9090"
policy:
  administrators: ["0x1111111111111111111111111111111111111111"]
  submitters: ["0x2222222222222222222222222222222222222222"]
throttle:
  submission_interval: 30s
encryption:
  scheme: paillier
  key_bits: 1024
  approval_threshold: 2
oracle:
  workers: 4
  threshold: 2
  response_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(golden), 0644))

	conf, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", conf.Server.Address)
	assert.Equal(t, 30*time.Second, conf.Throttle.SubmissionInterval)
	assert.Equal(t, time.Duration(0), conf.Throttle.DecryptionRequestInterval)
	assert.Equal(t, 1024, conf.Encryption.KeyBits)
	assert.Equal(t, uint64(2), conf.Encryption.ApprovalThreshold)
	assert.Equal(t, 4, conf.Oracle.Workers)
	assert.Equal(t, 64, conf.Oracle.QueueSize)
	assert.Equal(t, 2, conf.Oracle.Threshold)
	assert.Equal(t, 250*time.Millisecond, conf.Oracle.ResponseDelay)
	assert.False(t, conf.Server.EncryptHelper)
	assert.Equal(t, []string{"0x2222222222222222222222222222222222222222"}, conf.Policy.Submitters)
	assert.Equal(t, common.HexToAddress("0xaa"), conf.InstanceAddress())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad instance", func(c *Config) { c.Instance = "node-1" }},
		{"bad admin", func(c *Config) { c.Policy.Administrators = []string{"admin"} }},
		{"bad signer", func(c *Config) { c.Oracle.Signers = []string{"0x12"} }},
		{"unknown scheme", func(c *Config) { c.Encryption.Scheme = "bfv" }},
		{"small key", func(c *Config) { c.Encryption.KeyBits = 128 }},
		{"no workers", func(c *Config) { c.Oracle.Workers = 0 }},
		{"zero threshold", func(c *Config) { c.Oracle.Threshold = 0 }},
		{"negative interval", func(c *Config) { c.Throttle.SubmissionInterval = -time.Second }},
		{"negative response delay", func(c *Config) { c.Oracle.ResponseDelay = -time.Second }},
	}

	require.NoError(t, Default().Validate())
	for _, test := range tests {
		conf := Default()
		test.mutate(conf)
		if err := conf.Validate(); err == nil {
			t.Fatalf("test[%s] failed: expected validation error", test.name)
		}
	}
}
