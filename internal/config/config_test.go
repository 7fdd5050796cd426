// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(t))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.GetServerAddr() != "127.0.0.1:8086" {
		t.Errorf("addr = %s", cfg.GetServerAddr())
	}
	if cfg.NIC.MAC != "52:54:00:12:34:56" || cfg.NIC.MTU != 1500 {
		t.Errorf("nic = %+v", cfg.NIC)
	}
	if cfg.Debug.Output != "none" || !cfg.Helpers.Logger || !cfg.Helpers.Allocator {
		t.Errorf("debug = %+v, helpers = %+v", cfg.Debug, cfg.Helpers)
	}
	if len(cfg.NIC.UnsupportedCounters) != 4 {
		t.Errorf("unsupported counters = %v", cfg.NIC.UnsupportedCounters)
	}
	if cfg.IsProduction() || !cfg.IsDebugEnabled() {
		t.Error("default environment should be development")
	}
}

func TestLoadFlagsAndEnv(t *testing.T) {
	t.Setenv("SNPSIM_NIC_MTU", "9000")
	t.Setenv("SNPSIM_HELPERS_LEVEL", "debug")

	cfg, err := Load(newFlags(t, "--server.port=9999", "--nic.loopback"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9999" || !cfg.NIC.Loopback {
		t.Errorf("flags not applied: port %s, loopback %v", cfg.Server.Port, cfg.NIC.Loopback)
	}
	if cfg.NIC.MTU != 9000 || cfg.Helpers.Level != "debug" {
		t.Errorf("env not applied: mtu %d, level %s", cfg.NIC.MTU, cfg.Helpers.Level)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snpsim.yaml")
	data := `
debug:
  output: file
  file:
    path: /tmp/snpsim-debug.log
nic:
  mac: "02:00:00:aa:bb:cc"
  unsupported_counters: [collisions]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(newFlags(t, "--config="+path))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Debug.Output != "file" || cfg.NIC.MAC != "02:00:00:aa:bb:cc" {
		t.Errorf("file not applied: %+v %+v", cfg.Debug, cfg.NIC)
	}
	if len(cfg.NIC.UnsupportedCounters) != 1 || cfg.NIC.UnsupportedCounters[0] != "collisions" {
		t.Errorf("unsupported counters = %v", cfg.NIC.UnsupportedCounters)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(newFlags(t, "--config="+filepath.Join(t.TempDir(), "absent.yaml")))
	if err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad env", func(c *Config) { c.App.Environment = "moon" }, "app.environment"},
		{"bad helpers encoding", func(c *Config) { c.Helpers.Encoding = "xml" }, "helpers.encoding"},
		{"serial without port", func(c *Config) { c.Debug.Output = "serial" }, "debug.serial.port"},
		{"bad mac", func(c *Config) { c.NIC.MAC = "zz" }, "nic.mac"},
		{"tiny mtu", func(c *Config) { c.NIC.MTU = 10 }, "nic.mtu"},
		{"too many filters", func(c *Config) { c.NIC.MaxMCastFilterCount = 17 }, "nic.max_mcast_filters"},
		{"unaligned nvram", func(c *Config) { c.NIC.NvRAMSize = 510 }, "nic.nvram_size"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(newFlags(t))
			if err != nil {
				t.Fatal(err)
			}
			tc.mutate(cfg)

			err = validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("validate = %v, want mention of %s", err, tc.want)
			}
		})
	}
}
