package config_test

import (
	"testing"

	"github.com/medusa-ds9/medusad/internal/config"
	"github.com/stretchr/testify/require"
)

func TestBuildSimplePolicy(t *testing.T) {
	trusted := config.NewSpaceBuilder().WithName("trusted").WithPathRecursive("fs/")
	bin := config.NewSpaceBuilder().WithName("bin").WithPath("fs/bin").IncludeSpace("trusted")

	cb := config.NewBuilder().
		AddSpace(trusted).
		AddSpace(bin).
		AddHierarchyEventHandler("open", "fs", "path", false)

	cfg, err := cb.Build()
	require.NoError(t, err)

	tree, ok := cfg.TreeByName("fs")
	require.True(t, ok)
	require.NotNil(t, tree.Root())

	_, ok = cfg.NameToSpaceBit("trusted")
	require.True(t, ok)

	handlers := cfg.HandlersByEvent("open")
	require.Len(t, handlers, 1)
}

func TestBuildRejectsDuplicateSpaceName(t *testing.T) {
	a := config.NewSpaceBuilder().WithName("dup").WithPath("fs/")
	b := config.NewSpaceBuilder().WithName("dup").WithPath("fs/other")

	_, err := config.NewBuilder().AddSpace(a).AddSpace(b).Build()
	require.Error(t, err)
}

func TestSpaceBitIdsAssignedInFirstReferenceOrder(t *testing.T) {
	first := config.NewSpaceBuilder().WithName("first").WithPath("fs/a")
	second := config.NewSpaceBuilder().WithName("second").WithPath("fs/b")
	third := config.NewSpaceBuilder().WithName("third").WithPath("fs/c")

	cfg, err := config.NewBuilder().
		AddSpace(first).
		AddSpace(second).
		AddSpace(third).
		Build()
	require.NoError(t, err)

	bit0, ok := cfg.NameToSpaceBit("first")
	require.True(t, ok)
	bit1, ok := cfg.NameToSpaceBit("second")
	require.True(t, ok)
	bit2, ok := cfg.NameToSpaceBit("third")
	require.True(t, ok)

	require.Equal(t, 0, bit0)
	require.Equal(t, 1, bit1)
	require.Equal(t, 2, bit2)
}

func TestBuildRejectsUnknownIncludeSpace(t *testing.T) {
	a := config.NewSpaceBuilder().WithName("a").WithPath("fs/").IncludeSpace("ghost")

	_, err := config.NewBuilder().AddSpace(a).Build()
	require.Error(t, err)
}
