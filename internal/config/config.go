// Package config loads the YAML configuration files for the
// domain-server and driver binaries. It follows the teacher's
// apply-defaults-then-override-from-file shape (config_init in
// src/config.go applies hard-coded defaults before reading the
// channel/device directives that override them) but replaces the
// teacher's hand-rolled line scanner with a typed yaml.v3 document,
// since this module's configuration has a fixed shape rather than an
// open-ended directive language.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DomainConfig is the on-disk configuration for cmd/domain-server.
type DomainConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	SecureKey   string `yaml:"secure_key"`
	Development bool   `yaml:"development"`

	PubSub PubSubConfig `yaml:"pubsub"`
	Tasks  TasksConfig  `yaml:"tasks"`
}

// PubSubConfig selects the internal/pubsub.Bus backend.
type PubSubConfig struct {
	// Backend is "memory" or "nats". Defaults to "memory".
	Backend string `yaml:"backend"`
	NATSURL string `yaml:"nats_url"`
}

// TasksConfig configures the Tasks Supervisor.
type TasksConfig struct {
	// EngineIDs lists the engine instances available for first-fit
	// allocation, per spec.md's "first-fit over configured engines".
	EngineIDs       []string      `yaml:"engine_ids"`
	MaxPacketAge    time.Duration `yaml:"max_packet_age"`
	MaxPacketFrames int           `yaml:"max_packet_frames"`
}

func domainDefaults() DomainConfig {
	return DomainConfig{
		ListenAddr:  ":8080",
		Development: false,
		PubSub: PubSubConfig{
			Backend: "memory",
		},
		Tasks: TasksConfig{
			MaxPacketAge:    10 * time.Second,
			MaxPacketFrames: 256,
		},
	}
}

// LoadDomainConfig reads and validates a DomainConfig from path,
// applying defaults for anything the file leaves unset.
func LoadDomainConfig(path string) (*DomainConfig, error) {
	cfg := domainDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading domain-server config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing domain-server config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("domain-server config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *DomainConfig) validate() error {
	if !c.Development && c.SecureKey == "" {
		return fmt.Errorf("secure_key is required unless development is true")
	}

	switch c.PubSub.Backend {
	case "", "memory":
		c.PubSub.Backend = "memory"
	case "nats":
		if c.PubSub.NATSURL == "" {
			return fmt.Errorf("pubsub.nats_url is required when pubsub.backend is nats")
		}
	default:
		return fmt.Errorf("pubsub.backend must be \"memory\" or \"nats\", got %q", c.PubSub.Backend)
	}

	if c.Tasks.MaxPacketAge <= 0 {
		return fmt.Errorf("tasks.max_packet_age must be positive")
	}

	if c.Tasks.MaxPacketFrames <= 0 {
		return fmt.Errorf("tasks.max_packet_frames must be positive")
	}

	return nil
}

// DriverConfig is the on-disk configuration for cmd/driver: one
// process drives one instance class over one Backend, mirroring the
// teacher's one-small-binary-per-concern pattern.
type DriverConfig struct {
	InstanceID      string `yaml:"instance_id"`
	DomainServerURL string `yaml:"domain_server_url"`
	SecureKey       string `yaml:"secure_key"`

	// Backend is "gpio", "serial", or "usbhid".
	Backend string `yaml:"backend"`

	GPIO   *GPIOBackendConfig   `yaml:"gpio,omitempty"`
	Serial *SerialBackendConfig `yaml:"serial,omitempty"`
	USBHID *USBHIDBackendConfig `yaml:"usbhid,omitempty"`

	// PubSub is the bus cmd/driver joins to receive commands from and
	// publish driver events to a domain-server - it must name the same
	// backend/URL as that domain-server's own PubSubConfig.
	PubSub PubSubConfig `yaml:"pubsub"`
}

// GPIOBackendConfig mirrors internal/driverrt.GPIOConfig's fields so
// this package doesn't force internal/driverrt onto every caller that
// just wants to load a config file.
type GPIOBackendConfig struct {
	Chip      string `yaml:"chip"`
	Offset    int    `yaml:"offset"`
	ActiveLow bool   `yaml:"active_low"`
}

// SerialBackendConfig names the serial device node to open.
type SerialBackendConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud"`
}

// USBHIDBackendConfig identifies the USB HID device by vendor/product
// ID, the same pair jochenvg/go-udev's Enumerate match is keyed on.
type USBHIDBackendConfig struct {
	VendorID  string   `yaml:"vendor_id"`
	ProductID string   `yaml:"product_id"`
	Params    []string `yaml:"params"`
}

func driverDefaults() DriverConfig {
	return DriverConfig{
		Backend: "usbhid",
		PubSub: PubSubConfig{
			Backend: "memory",
		},
	}
}

// LoadDriverConfig reads and validates a DriverConfig from path.
func LoadDriverConfig(path string) (*DriverConfig, error) {
	cfg := driverDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading driver config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing driver config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("driver config %s: %w", path, err)
	}

	return &cfg, nil
}

func (c *DriverConfig) validate() error {
	if c.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}

	switch c.Backend {
	case "gpio":
		if c.GPIO == nil {
			return fmt.Errorf("backend is gpio but no gpio section is configured")
		}
	case "serial":
		if c.Serial == nil || c.Serial.Port == "" {
			return fmt.Errorf("backend is serial but serial.port is not configured")
		}
	case "usbhid":
		if c.USBHID == nil || c.USBHID.VendorID == "" || c.USBHID.ProductID == "" {
			return fmt.Errorf("backend is usbhid but usbhid.vendor_id/product_id are not configured")
		}
	default:
		return fmt.Errorf("backend must be \"gpio\", \"serial\", or \"usbhid\", got %q", c.Backend)
	}

	switch c.PubSub.Backend {
	case "", "memory":
		c.PubSub.Backend = "memory"
	case "nats":
		if c.PubSub.NATSURL == "" {
			return fmt.Errorf("pubsub.nats_url is required when pubsub.backend is nats")
		}
	default:
		return fmt.Errorf("pubsub.backend must be \"memory\" or \"nats\", got %q", c.PubSub.Backend)
	}

	return nil
}
