// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianBench/services/bench/descriptor"
	mt "github.com/AleutianAI/AleutianBench/services/bench/model/modeltest"
)

const pkg = "example.com/bench"

func displayNames(maps []descriptor.ParamMap) []string {
	out := make([]string, len(maps))
	for i, m := range maps {
		out[i] = m.DisplayName()
	}
	return out
}

// TestExpand_SingleHolderParameter verifies one holder with explicit values.
func TestExpand_SingleHolderParameter(t *testing.T) {
	state := mt.Struct(pkg, "StateX", mt.Param("Field", mt.String, "1", "2"))
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkB", mt.Ptr(state)))

	m := cls.Methods[0]
	assert.True(t, IsParametrized(m))
	assert.Equal(t, []string{"[Field=1]", "[Field=2]"}, displayNames(Expand(m)))
}

// TestExpand_RowMajorOrder verifies that the first discovered argument is the
// outermost loop across two holders.
func TestExpand_RowMajorOrder(t *testing.T) {
	x := mt.Struct(pkg, "X", mt.Param("x", mt.Int, "1", "2", "3"))
	y := mt.Struct(pkg, "Y", mt.Param("y", mt.Int, "1", "2", "3"))
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkXY", mt.Ptr(x), mt.Ptr(y)))

	got := displayNames(Expand(cls.Methods[0]))
	assert.Equal(t, []string{
		"[x=1, y=1]", "[x=1, y=2]", "[x=1, y=3]",
		"[x=2, y=1]", "[x=2, y=2]", "[x=2, y=3]",
		"[x=3, y=1]", "[x=3, y=2]", "[x=3, y=3]",
	}, got)
}

// TestExpand_FixtureCountIsProduct verifies n1 x n2 x n3 with no duplicates.
func TestExpand_FixtureCountIsProduct(t *testing.T) {
	h := mt.Struct(pkg, "H",
		mt.Param("A", mt.Int, "1", "2"),
		mt.Param("B", mt.Int, "1", "2", "3"),
		mt.Param("C", mt.Int, "1", "2", "3", "4"))
	cls := mt.Class(h, mt.Bench("BenchmarkH"))

	got := Expand(cls.Methods[0])
	require.Len(t, got, 24)

	seen := make(map[string]bool)
	for _, p := range got {
		name := p.DisplayName()
		assert.False(t, seen[name], "duplicate fixture %s", name)
		seen[name] = true
	}
	assert.Equal(t, "[A=1, B=1, C=1]", got[0].DisplayName())
	assert.Equal(t, "[A=1, B=1, C=2]", got[1].DisplayName())
	assert.Equal(t, "[A=2, B=3, C=4]", got[23].DisplayName())
}

// TestExpand_EnumFallback verifies that a parameter without values expands
// to the enum constants, including the blank sentinel form.
func TestExpand_EnumFallback(t *testing.T) {
	mode := mt.Enum(pkg, "Mode", "FAST", "SLOW", "AUTO")

	for name, values := range map[string][]string{"none": nil, "blank": {""}} {
		t.Run(name, func(t *testing.T) {
			h := mt.Struct(pkg, "H", mt.Param("Mode", mode, values...))
			cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkMode", h))

			assert.Equal(t,
				[]string{"[Mode=FAST]", "[Mode=SLOW]", "[Mode=AUTO]"},
				displayNames(Expand(cls.Methods[0])))
		})
	}
}

// TestExpand_ExplicitValuesOverrideEnum verifies that declared values win
// over enum constants.
func TestExpand_ExplicitValuesOverrideEnum(t *testing.T) {
	mode := mt.Enum(pkg, "Mode", "FAST", "SLOW")
	h := mt.Struct(pkg, "H", mt.Param("Mode", mode, "SLOW"))
	cls := mt.Class(h, mt.Bench("BenchmarkMode"))

	assert.Equal(t, []string{"[Mode=SLOW]"}, displayNames(Expand(cls.Methods[0])))
}

// TestArguments_MergeByName verifies that a name shared by two holders
// becomes one argument at its first position with the union of values.
func TestArguments_MergeByName(t *testing.T) {
	suite := mt.Struct(pkg, "Suite",
		mt.Param("size", mt.Int, "1", "2"),
		mt.Param("codec", mt.String, "json"))
	other := mt.Struct(pkg, "Other",
		mt.Param("size", mt.Int, "2", "3"),
		mt.Param("level", mt.Int, "9"))
	cls := mt.Class(suite, mt.Bench("BenchmarkMerge", mt.Ptr(other)))

	args := Arguments(cls.Methods[0])
	assert.Equal(t, []Argument{
		{Name: "size", Values: []string{"1", "2", "3"}},
		{Name: "codec", Values: []string{"json"}},
		{Name: "level", Values: []string{"9"}},
	}, args)
	assert.Len(t, Expand(cls.Methods[0]), 3)
}

// TestArguments_VisibleBeforeDeclared verifies field order and
// de-duplication inside one holder.
func TestArguments_VisibleBeforeDeclared(t *testing.T) {
	h := mt.Struct(pkg, "H",
		mt.Param("hidden", mt.Int, "0"),
		mt.Param("Visible", mt.Int, "1"))

	cls := mt.Class(h, mt.Bench("BenchmarkH"))
	args := Arguments(cls.Methods[0])
	require.Len(t, args, 2)
	assert.Equal(t, "Visible", args[0].Name)
	assert.Equal(t, "hidden", args[1].Name)
}

// TestExpand_NoArguments verifies that holders without resolvable values do
// not make a method parametrized.
func TestExpand_NoArguments(t *testing.T) {
	h := mt.Struct(pkg, "H", mt.Param("Count", mt.Int), mt.Plain("Other", mt.String))
	cls := mt.Class(mt.Struct(pkg, "Suite"), mt.Bench("BenchmarkPlain", mt.Ptr(h)))

	m := cls.Methods[0]
	assert.False(t, IsHolder(h))
	assert.False(t, IsParametrized(m))
	assert.Empty(t, Arguments(m))
	assert.Nil(t, Expand(m))
}
