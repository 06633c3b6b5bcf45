// Package config handles loading and validating the aggregation subsystem's
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/dirsvc/microblock/model/zil"
)

// AggregationConfig carries the tunable parameters of the microblock
// aggregation subsystem. Protocol-level values must match the whole
// committee; node-level values are local.
type AggregationConfig struct {
	// MicroBlockVersion is the expected microblock header version.
	MicroBlockVersion uint32 `mapstructure:"microblock-version" validate:"gt=0"`

	// ConsensusObjectTimeout bounds how long a consensus object stays valid.
	ConsensusObjectTimeout time.Duration `mapstructure:"consensus-object-timeout" validate:"gt=0"`

	// MicroBlockTimeout is the shard-side microblock consensus timeout.
	MicroBlockTimeout time.Duration `mapstructure:"microblock-timeout" validate:"gt=0"`

	// ExtraDistributeTime widens the submission window on distribution
	// boundary epochs.
	ExtraDistributeTime time.Duration `mapstructure:"extra-distribute-time" validate:"gte=0"`

	// BlocksPerDistributionCycle is the periodic epoch cycle length.
	BlocksPerDistributionCycle uint64 `mapstructure:"blocks-per-distribution-cycle" validate:"gt=0"`

	// Observer makes this node a read-only follower of the aggregation
	// protocol: submissions are acknowledged but never mutate state.
	Observer bool `mapstructure:"observer"`
}

const configKeyPrefix = "aggregation"

func setDefaults(v *viper.Viper, defaults zil.Params) {
	v.SetDefault(configKeyPrefix+".microblock-version", defaults.MicroBlockVersion)
	v.SetDefault(configKeyPrefix+".consensus-object-timeout", defaults.ConsensusObjectTimeout)
	v.SetDefault(configKeyPrefix+".microblock-timeout", defaults.MicroBlockTimeout)
	v.SetDefault(configKeyPrefix+".extra-distribute-time", defaults.ExtraDistributeTime)
	v.SetDefault(configKeyPrefix+".blocks-per-distribution-cycle", defaults.BlocksPerDistributionCycle)
	v.SetDefault(configKeyPrefix+".observer", false)
}

// Load reads the aggregation configuration from the given viper instance,
// applying protocol defaults for unset keys, and validates it. Keys are read
// individually so that overriding one key never shadows the defaults of the
// others.
func Load(v *viper.Viper) (*AggregationConfig, error) {
	setDefaults(v, zil.DefaultParams())

	conf := AggregationConfig{
		MicroBlockVersion:          v.GetUint32(configKeyPrefix + ".microblock-version"),
		ConsensusObjectTimeout:     v.GetDuration(configKeyPrefix + ".consensus-object-timeout"),
		MicroBlockTimeout:          v.GetDuration(configKeyPrefix + ".microblock-timeout"),
		ExtraDistributeTime:        v.GetDuration(configKeyPrefix + ".extra-distribute-time"),
		BlocksPerDistributionCycle: v.GetUint64(configKeyPrefix + ".blocks-per-distribution-cycle"),
		Observer:                   v.GetBool(configKeyPrefix + ".observer"),
	}

	err := validator.New().Struct(conf)
	if err != nil {
		return nil, fmt.Errorf("invalid aggregation config: %w", err)
	}
	return &conf, nil
}

// Params converts the validated configuration into protocol params.
func (c *AggregationConfig) Params() zil.Params {
	return zil.Params{
		MicroBlockVersion:          c.MicroBlockVersion,
		ConsensusObjectTimeout:     c.ConsensusObjectTimeout,
		MicroBlockTimeout:          c.MicroBlockTimeout,
		ExtraDistributeTime:        c.ExtraDistributeTime,
		BlocksPerDistributionCycle: c.BlocksPerDistributionCycle,
	}
}
