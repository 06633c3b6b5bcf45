package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirsvc/microblock/model/zil"
)

func TestLoadDefaults(t *testing.T) {
	conf, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, zil.DefaultParams(), conf.Params())
	assert.False(t, conf.Observer)
}

func TestLoadOverrideKeepsOtherDefaults(t *testing.T) {
	v := viper.New()
	v.Set("aggregation.microblock-timeout", "45s")
	v.Set("aggregation.observer", true)

	conf, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, conf.MicroBlockTimeout)
	assert.True(t, conf.Observer)
	assert.Equal(t, zil.DefaultParams().ConsensusObjectTimeout, conf.ConsensusObjectTimeout)
	assert.Equal(t, zil.DefaultParams().BlocksPerDistributionCycle, conf.BlocksPerDistributionCycle)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	v := viper.New()
	v.Set("aggregation.blocks-per-distribution-cycle", 0)

	_, err := Load(v)
	require.Error(t, err)
}
