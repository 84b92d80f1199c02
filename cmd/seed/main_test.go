package main

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixturesCommand(t *testing.T) {
	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"fixtures", "--store", "memory", "--organization", "002220647"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "1\tgratis-trouwen\tGratis Trouwen\n"+
		"2\teenvoudig-trouwen\tEenvoudig Trouwen\n"+
		"3\tuitgebreid-trouwen-v-a\tUitgebreid Trouwen v.a.\n", out.String())
}

func TestFixturesCommandReadsEnvironment(t *testing.T) {
	t.Setenv("PRODUCTEN_STORE", "memory")
	t.Setenv("PRODUCTEN_ORGANIZATION", "002220647")

	cmd := newRootCmd(viper.New())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"fixtures"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "eenvoudig-trouwen")
}

func TestUnknownStore(t *testing.T) {
	cmd := newRootCmd(viper.New())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"fixtures", "--store", "sqlite"})

	assert.ErrorContains(t, cmd.Execute(), "unknown store backend")
}
