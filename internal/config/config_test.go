package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDomainConfig_AppliesDefaults(t *testing.T) {
	path := writeTemp(t, "secure_key: topsecret\n")

	cfg, err := LoadDomainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "memory", cfg.PubSub.Backend)
	assert.Equal(t, 10*time.Second, cfg.Tasks.MaxPacketAge)
	assert.Equal(t, 256, cfg.Tasks.MaxPacketFrames)
}

func TestLoadDomainConfig_OverridesDefaults(t *testing.T) {
	path := writeTemp(t, `
listen_addr: ":9090"
secure_key: topsecret
tasks:
  engine_ids: ["engine-1", "engine-2"]
  max_packet_age: 5s
  max_packet_frames: 64
`)

	cfg, err := LoadDomainConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, []string{"engine-1", "engine-2"}, cfg.Tasks.EngineIDs)
	assert.Equal(t, 5*time.Second, cfg.Tasks.MaxPacketAge)
	assert.Equal(t, 64, cfg.Tasks.MaxPacketFrames)
}

func TestLoadDomainConfig_RequiresSecureKeyInProduction(t *testing.T) {
	path := writeTemp(t, "listen_addr: \":8080\"\n")

	_, err := LoadDomainConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secure_key")
}

func TestLoadDomainConfig_DevelopmentAllowsMissingSecureKey(t *testing.T) {
	path := writeTemp(t, "development: true\n")

	cfg, err := LoadDomainConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Development)
}

func TestLoadDomainConfig_NATSBackendRequiresURL(t *testing.T) {
	path := writeTemp(t, `
development: true
pubsub:
  backend: nats
`)

	_, err := LoadDomainConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats_url")
}

func TestLoadDomainConfig_RejectsUnknownPubSubBackend(t *testing.T) {
	path := writeTemp(t, `
development: true
pubsub:
  backend: kafka
`)

	_, err := LoadDomainConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub.backend")
}

func TestLoadDomainConfig_MissingFile(t *testing.T) {
	_, err := LoadDomainConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadDriverConfig_GPIO(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: gpio
gpio:
  chip: gpiochip0
  offset: 17
`)

	cfg, err := LoadDriverConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "acme/amp/1", cfg.InstanceID)
	require.NotNil(t, cfg.GPIO)
	assert.Equal(t, "gpiochip0", cfg.GPIO.Chip)
	assert.Equal(t, 17, cfg.GPIO.Offset)
}

func TestLoadDriverConfig_RequiresInstanceID(t *testing.T) {
	path := writeTemp(t, "backend: usbhid\n")

	_, err := LoadDriverConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance_id")
}

func TestLoadDriverConfig_USBHIDRequiresIDs(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: usbhid
`)

	_, err := LoadDriverConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor_id")
}

func TestLoadDriverConfig_SerialRequiresPort(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: serial
serial:
  baud: 9600
`)

	_, err := LoadDriverConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serial.port")
}

func TestLoadDriverConfig_RejectsUnknownBackend(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: bluetooth
`)

	_, err := LoadDriverConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend must be")
}

func TestLoadDriverConfig_PubSubDefaultsToMemory(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: gpio
gpio:
  chip: gpiochip0
  offset: 17
`)

	cfg, err := LoadDriverConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.PubSub.Backend)
}

func TestLoadDriverConfig_NATSPubSubRequiresURL(t *testing.T) {
	path := writeTemp(t, `
instance_id: acme/amp/1
backend: gpio
gpio:
  chip: gpiochip0
  offset: 17
pubsub:
  backend: nats
`)

	_, err := LoadDriverConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pubsub.nats_url")
}
