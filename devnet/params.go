package devnet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/kcnet/incentives/shared"
	"github.com/kcnet/incentives/types"
)

// Amount is a token amount written as a decimal string. Underscores are
// allowed as digit separators.
type Amount struct {
	*uint256.Int
}

// UnmarshalYAML parses decimal amounts.
func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("amount must be a scalar")
	}
	raw := strings.ReplaceAll(strings.TrimSpace(value.Value), "_", "")
	if raw == "" {
		a.Int = shared.Zero()
		return nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", value.Value, err)
	}
	a.Int = v
	return nil
}

// Value returns a copy, zero when unset.
func (a Amount) Value() *uint256.Int {
	return shared.Copy(a.Int)
}

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Params describes a devnet.
type Params struct {
	GenesisTime        uint64            `yaml:"genesis_time"`
	BlockTime          Duration          `yaml:"block_time"`
	EpochLengthBlocks  uint64            `yaml:"epoch_length_blocks"`
	Seed               string            `yaml:"seed"`
	AutoFinalize       bool              `yaml:"auto_finalize"`
	StakeCap           Amount            `yaml:"stake_cap"`
	MinimumStake       Amount            `yaml:"minimum_stake"`
	NetworkPrice       Amount            `yaml:"network_price"`
	CollectionsAddress string            `yaml:"collections_address"`
	Governors          []string          `yaml:"governors"`
	Accounts           map[string]Amount `yaml:"accounts"`
	Nodes              []NodeParams      `yaml:"nodes"`
}

// NodeParams is a node profile.
type NodeParams struct {
	ID              shared.NodeID `yaml:"id"`
	Ask             Amount        `yaml:"ask"`
	AdminKeys       []string      `yaml:"admin_keys"`
	OperationalKeys []string      `yaml:"operational_keys"`
}

// DefaultParams is a single-epoch-per-hour devnet without nodes.
func DefaultParams() Params {
	return Params{
		BlockTime:          Duration{12 * time.Second},
		EpochLengthBlocks:  300,
		Seed:               "devnet",
		AutoFinalize:       true,
		StakeCap:           Amount{uint256.NewInt(2_000_000)},
		MinimumStake:       Amount{uint256.NewInt(50_000)},
		NetworkPrice:       Amount{uint256.NewInt(1_000)},
		CollectionsAddress: "0x00000000000000000000000000000000000c011e",
	}
}

// LoadParams reads parameters from a YAML file on top of DefaultParams.
func LoadParams(path string) (Params, error) {
	params := DefaultParams()
	file, err := os.Open(path)
	if err != nil {
		return params, fmt.Errorf("open params: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&params); err != nil {
		return params, fmt.Errorf("decode params: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

func parseAddresses(field string, raw []string) ([]common.Address, error) {
	addrs := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%s: invalid address %q", field, s)
		}
		addrs = append(addrs, common.HexToAddress(s))
	}
	return addrs, nil
}

// Validate rejects parameters the network cannot run with.
func (p Params) Validate() error {
	if p.BlockTime.Duration < time.Second {
		return fmt.Errorf("%w: %s", types.ErrZeroBlockTime, p.BlockTime.Duration)
	}
	if p.EpochLengthBlocks == 0 {
		return fmt.Errorf("%w: epoch length", types.ErrZeroDuration)
	}
	if p.StakeCap.Value().IsZero() {
		return types.ErrZeroStakeCap
	}
	if !common.IsHexAddress(p.CollectionsAddress) {
		return fmt.Errorf("collections_address: invalid address %q", p.CollectionsAddress)
	}
	if _, err := parseAddresses("governors", p.Governors); err != nil {
		return err
	}
	for addr := range p.Accounts {
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("accounts: invalid address %q", addr)
		}
	}
	seen := make(map[shared.NodeID]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		if n.ID == 0 {
			return fmt.Errorf("nodes: id must be greater than zero")
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes: duplicate id %s", n.ID)
		}
		seen[n.ID] = true
		if _, err := parseAddresses(fmt.Sprintf("node %s admin_keys", n.ID), n.AdminKeys); err != nil {
			return err
		}
		if _, err := parseAddresses(fmt.Sprintf("node %s operational_keys", n.ID), n.OperationalKeys); err != nil {
			return err
		}
	}
	return nil
}
