// Package config parses the YAML launch manifest that configures one
// psik-ctrl process: switch DPIDs and the fabric's target load weights.
// POX's original launch() keyword arguments have no Go analogue, so the
// same parameters are expressed as an on-disk document instead, parsed
// with gopkg.in/yaml.v2 (present in the retrieved pack via
// grimm-is-flywall's go.mod).
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ups100/psik-ctrl/fabric"
	"github.com/ups100/psik-ctrl/openflow"
)

// DataCenter is one data center's launch configuration: its switch DPID
// and the target load weights spec.md §6 calls `dcs_load`.
type DataCenter struct {
	DPID         string    `yaml:"dpid"`
	Weight       float64   `yaml:"weight"`
	ServerWeight []float64 `yaml:"server_weight"`
}

// Manifest is the on-disk shape of the launch parameters table in
// spec.md §6.
type Manifest struct {
	MSSDPID string `yaml:"mss_dpid"`
	MSSIP   string `yaml:"mss_ip"`
	MCSDPID string `yaml:"mcs_dpid"`

	DataCenters []DataCenter `yaml:"data_centers"`

	BalanceMode string `yaml:"balance_mode"`

	ListenAddr string `yaml:"listen_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Config is a Manifest after validation and DPID/mode parsing — the
// form the rest of the program consumes.
type Config struct {
	MSSDPID openflow.DPID
	MSSIP   net.IP
	MCSDPID openflow.DPID
	DCDPIDs []openflow.DPID

	FabricConfig fabric.Config

	ListenAddr  string
	MetricsAddr string
}

// defaultListenAddr and defaultMetricsAddr are used when the manifest
// leaves them blank.
const (
	defaultListenAddr  = ":6633"
	defaultMetricsAddr = ":9100"
)

// Load reads and validates the YAML manifest at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	return m.resolve()
}

func (m Manifest) resolve() (Config, error) {
	cfg := Config{
		ListenAddr:  m.ListenAddr,
		MetricsAddr: m.MetricsAddr,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultListenAddr
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}

	var err error
	if cfg.MSSDPID, err = openflow.ParseDPID(m.MSSDPID); err != nil {
		return Config{}, fmt.Errorf("config: mss_dpid: %w", err)
	}
	if cfg.MCSDPID, err = openflow.ParseDPID(m.MCSDPID); err != nil {
		return Config{}, fmt.Errorf("config: mcs_dpid: %w", err)
	}

	cfg.MSSIP = net.ParseIP(m.MSSIP)
	if cfg.MSSIP == nil {
		cfg.MSSIP = net.ParseIP("10.254.254.254")
	}

	if len(m.DataCenters) == 0 {
		return Config{}, fmt.Errorf("config: at least one data center must be configured")
	}

	dcWeights := make([]float64, len(m.DataCenters))
	srvWeights := make([][]float64, len(m.DataCenters))
	cfg.DCDPIDs = make([]openflow.DPID, len(m.DataCenters))

	for i, dc := range m.DataCenters {
		dpid, err := openflow.ParseDPID(dc.DPID)
		if err != nil {
			return Config{}, fmt.Errorf("config: data_centers[%d].dpid: %w", i, err)
		}
		if len(dc.ServerWeight) == 0 {
			return Config{}, fmt.Errorf("config: data_centers[%d].server_weight must be non-empty", i)
		}
		cfg.DCDPIDs[i] = dpid
		dcWeights[i] = dc.Weight
		srvWeights[i] = dc.ServerWeight
	}

	mode, err := parseBalanceMode(m.BalanceMode)
	if err != nil {
		return Config{}, err
	}

	cfg.FabricConfig = fabric.Config{
		DCWeights:     dcWeights,
		ServerWeights: srvWeights,
		Mode:          mode,
	}

	return cfg, nil
}

func parseBalanceMode(s string) (fabric.BalanceMode, error) {
	switch s {
	case "", "static":
		return fabric.BalanceStatic, nil
	case "dynamic_cpu":
		return fabric.BalanceDynamicCPU, nil
	case "dynamic_net":
		return fabric.BalanceDynamicNet, nil
	default:
		return 0, fmt.Errorf("config: unknown balance_mode %q", s)
	}
}
