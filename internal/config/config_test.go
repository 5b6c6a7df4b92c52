package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateConfigDefaults(t *testing.T) {
	cfg := CreateDefaultConfig()
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateConfigRejectsBadTCPPort(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.Network.TCPPort = 0
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for tcp_port 0")
	}
}

func TestValidateConfigRejectsBadUDPPortWhenEnabled(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.Network.EnableUDPIO = true
	cfg.Network.UDPIOPort = 70000
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for out-of-range udp_io_port")
	}
}

func TestValidateConfigRejectsDuplicateAssemblyInstance(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.Assemblies = append(cfg.Assemblies, AssemblyConfig{Name: "dup", Instance: 0x65, SizeBytes: 4})
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for duplicate assembly instance")
	}
}

func TestValidateConfigRejectsUnknownConnectionPointAssembly(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.ConnectionManager.InputOnly = []ConnectionPointConfig{
		{Name: "bad", ConsumingAssembly: -1, ProducingAssembly: 999},
	}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for connection point referencing undeclared assembly")
	}
}

func TestValidateConfigRejectsEmptyConnectionPoint(t *testing.T) {
	cfg := CreateDefaultConfig()
	cfg.ConnectionManager.ListenOnly = []ConnectionPointConfig{
		{Name: "empty", ConsumingAssembly: -1, ProducingAssembly: -1},
	}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatal("expected error for connection point with no assemblies")
	}
}

func TestLoadConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adapter.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	cfg, err := LoadConfig(path, false)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Name != "cipadapter" {
		t.Errorf("name = %q, want %q", cfg.Name, "cipadapter")
	}
	if len(cfg.Assemblies) != 2 {
		t.Errorf("assemblies = %d, want 2", len(cfg.Assemblies))
	}
}

func TestLoadConfigAutoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("path unexpectedly exists: %s", path)
	}
	cfg, err := LoadConfig(path, true)
	if err != nil {
		t.Fatalf("LoadConfig with autoCreate: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected autoCreate to write %s: %v", path, err)
	}
}

func TestLoadConfigMissingWithoutAutoCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := LoadConfig(path, false); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadConfigRejectsInvalidContent(t *testing.T) {
	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(badPath, []byte("network:\n  tcp_port: 0\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadConfig(badPath, false); err == nil {
		t.Fatal("expected validation error for tcp_port 0")
	}
}
