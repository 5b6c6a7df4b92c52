// Package config loads the adapter's startup configuration: network
// interface identity, device identity, connection-point vectors, and
// assembly sizes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// NetworkConfig identifies the interface the adapter listens on.
type NetworkConfig struct {
	ListenIP           string `yaml:"listen_ip"`
	TCPPort            int    `yaml:"tcp_port"`
	UDPIOPort          int    `yaml:"udp_io_port"`
	EnableUDPIO        bool   `yaml:"enable_udp_io"`
	MulticastGroup     string `yaml:"multicast_group,omitempty"`
	MulticastInterface string `yaml:"multicast_interface,omitempty"`
}

// IdentityConfig fills the Identity object's key attributes (spec.md §4.2).
type IdentityConfig struct {
	VendorID     uint16 `yaml:"vendor_id"`
	DeviceType   uint16 `yaml:"device_type"`
	ProductCode  uint16 `yaml:"product_code"`
	RevisionMajor uint8  `yaml:"revision_major"`
	RevisionMinor uint8  `yaml:"revision_minor"`
	SerialNumber uint32 `yaml:"serial_number"`
	ProductName  string `yaml:"product_name"`
}

// ConnectionPointConfig describes one connection point offered by an
// exclusive-owner, input-only, or listen-only vector.
type ConnectionPointConfig struct {
	Name              string `yaml:"name"`
	ConsumingAssembly int32  `yaml:"consuming_assembly"`
	ProducingAssembly int32  `yaml:"producing_assembly"`
	ConfigAssembly    int32  `yaml:"config_assembly,omitempty"`
}

// ConnectionManagerConfig carries the three connection-point vectors. It has
// no separate resource-bound fields (original_source/appcontype.cc's
// NUM_EXCLUSIVE_OWNER_CONNS / NUM_INPUT_ONLY_CONNS / NUM_LISTEN_ONLY_CONNS):
// stack.New bounds each vector by the number of entries listed here.
type ConnectionManagerConfig struct {
	ExclusiveOwners []ConnectionPointConfig `yaml:"exclusive_owners"`
	InputOnly       []ConnectionPointConfig `yaml:"input_only"`
	ListenOnly      []ConnectionPointConfig `yaml:"listen_only"`
}

// AssemblyConfig describes one assembly instance's buffer.
type AssemblyConfig struct {
	Name      string `yaml:"name"`
	Instance  uint16 `yaml:"instance"`
	SizeBytes int    `yaml:"size_bytes"`
}

// LoggingConfig controls log formatting and verbosity (carried regardless
// of the spec's feature Non-goals; logging is ambient, not a feature).
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty"` // "error","info","verbose","debug"
	LogFile string `yaml:"log_file,omitempty"`
}

// TelemetryConfig configures internal/app's optional MQTT/Kafka/Redis/HTTP
// bridges. A bridge is disabled when its address is left empty (MQTTBroker,
// KafkaBrokers or KafkaTopic, RedisAddr, HTTPListenAddr).
type TelemetryConfig struct {
	MQTTBroker    string `yaml:"mqtt_broker,omitempty"`
	MQTTTopic     string `yaml:"mqtt_topic,omitempty"`
	KafkaBrokers  []string `yaml:"kafka_brokers,omitempty"`
	KafkaTopic    string `yaml:"kafka_topic,omitempty"`
	RedisAddr     string `yaml:"redis_addr,omitempty"`
	RedisKey      string `yaml:"redis_key,omitempty"`
	HTTPListenAddr string `yaml:"http_listen_addr,omitempty"`
}

// AdapterConfig is the full startup configuration for cipadapter.
type AdapterConfig struct {
	Name              string                  `yaml:"name"`
	Network           NetworkConfig           `yaml:"network"`
	Identity          IdentityConfig          `yaml:"identity"`
	ConnectionManager ConnectionManagerConfig `yaml:"connection_manager"`
	Assemblies        []AssemblyConfig        `yaml:"assemblies"`
	Logging           LoggingConfig           `yaml:"logging,omitempty"`
	Telemetry         TelemetryConfig         `yaml:"telemetry,omitempty"`
}

// CreateDefaultConfig returns the configuration for a single exclusive-owner
// I/O connection: a 16-byte input assembly (instance 0x65) and a 16-byte
// output assembly (instance 0x67), matching the shape of CIPster's sample
// application.
func CreateDefaultConfig() *AdapterConfig {
	return &AdapterConfig{
		Name: "cipadapter",
		Network: NetworkConfig{
			ListenIP:    "0.0.0.0",
			TCPPort:     44818,
			UDPIOPort:   2222,
			EnableUDPIO: true,
		},
		Identity: IdentityConfig{
			VendorID:    1,
			DeviceType:  0x0C,
			ProductCode: 1,
			ProductName: "cipadapter",
		},
		ConnectionManager: ConnectionManagerConfig{
			ExclusiveOwners: []ConnectionPointConfig{
				{Name: "exclusive_io", ConsumingAssembly: 0x67, ProducingAssembly: 0x65, ConfigAssembly: -1},
			},
		},
		Assemblies: []AssemblyConfig{
			{Name: "InputAssembly", Instance: 0x65, SizeBytes: 16},
			{Name: "OutputAssembly", Instance: 0x67, SizeBytes: 16},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// WriteDefaultConfig writes CreateDefaultConfig's result to path.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(CreateDefaultConfig())
	if err != nil {
		return fmt.Errorf("config: marshal default config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadConfig reads and validates the adapter configuration at path. If
// autoCreate is true and path does not exist, a default configuration is
// written there first.
func LoadConfig(path string, autoCreate bool) (*AdapterConfig, error) {
	if autoCreate {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := WriteDefaultConfig(path); err != nil {
				return nil, err
			}
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg AdapterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// ValidateConfig checks structural invariants that would otherwise surface
// as confusing panics or silent misbehavior deep inside connmgr/stack.
func ValidateConfig(cfg *AdapterConfig) error {
	if cfg.Network.TCPPort <= 0 || cfg.Network.TCPPort > 65535 {
		return fmt.Errorf("network.tcp_port %d out of range", cfg.Network.TCPPort)
	}
	if cfg.Network.EnableUDPIO && (cfg.Network.UDPIOPort <= 0 || cfg.Network.UDPIOPort > 65535) {
		return fmt.Errorf("network.udp_io_port %d out of range", cfg.Network.UDPIOPort)
	}

	assemblySizes := make(map[uint16]int, len(cfg.Assemblies))
	for i, a := range cfg.Assemblies {
		if a.SizeBytes < 0 {
			return fmt.Errorf("assemblies[%d] (%s): size_bytes must not be negative", i, a.Name)
		}
		if _, dup := assemblySizes[a.Instance]; dup {
			return fmt.Errorf("assemblies[%d] (%s): duplicate instance %d", i, a.Name, a.Instance)
		}
		assemblySizes[a.Instance] = a.SizeBytes
	}

	validateConnectionPoints := func(kind string, points []ConnectionPointConfig) error {
		for i, p := range points {
			if p.ConsumingAssembly < 0 && p.ProducingAssembly < 0 {
				return fmt.Errorf("connection_manager.%s[%d] (%s): both consuming and producing assemblies are unset", kind, i, p.Name)
			}
			for _, id := range []int32{p.ConsumingAssembly, p.ProducingAssembly, p.ConfigAssembly} {
				if id >= 0 {
					if _, ok := assemblySizes[uint16(id)]; !ok {
						return fmt.Errorf("connection_manager.%s[%d] (%s): assembly instance %d is not declared under assemblies", kind, i, p.Name, id)
					}
				}
			}
		}
		return nil
	}
	if err := validateConnectionPoints("exclusive_owners", cfg.ConnectionManager.ExclusiveOwners); err != nil {
		return err
	}
	if err := validateConnectionPoints("input_only", cfg.ConnectionManager.InputOnly); err != nil {
		return err
	}
	if err := validateConnectionPoints("listen_only", cfg.ConnectionManager.ListenOnly); err != nil {
		return err
	}
	return nil
}
