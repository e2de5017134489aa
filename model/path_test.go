package model_test

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelsplace/model2glb/model"
)

func TestValidatePathValid(t *testing.T) {
	t.Parallel()

	for _, p := range []string{"cube.obj", "models/Cube.OBJ", "../a/b c/scene.gltf", "bundle.zip", "x.fbx"} {
		assert.NoError(t, model.ValidatePath("RunConversion", model.Input, p), p)
	}
	for _, p := range []string{"out.glb", "dir/OUT.GLB"} {
		assert.NoError(t, model.ValidatePath("RunConversion", model.Output, p), p)
	}
}

func TestValidatePathRules(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		role model.Role
		path string
		rule model.Rule
		msg  string
	}{
		{"empty", model.Input, "", model.RuleEmpty, "RunConversion: inputPath must not be empty"},
		{"too long", model.Input, strings.Repeat("a", 997) + ".obj", model.RuleLength, "at most 1000 characters, got 1001"},
		{"control char", model.Input, "cu\x07be.obj", model.RuleForbiddenChar, "control character U+0007"},
		{"nul", model.Output, "a\x00.glb", model.RuleForbiddenChar, "outputPath contains control character U+0000"},
		{"lt", model.Input, "a<b.obj", model.RuleForbiddenChar, `forbidden character '<'`},
		{"colon", model.Input, "c:cube.obj", model.RuleForbiddenChar, `forbidden character ':'`},
		{"pipe", model.Output, "a|b.glb", model.RuleForbiddenChar, `forbidden character '|'`},
		{"star", model.Output, "*.glb", model.RuleForbiddenChar, `forbidden character '*'`},
		{"no ext", model.Input, "models/cube", model.RuleMissingExtension, "inputPath has no file extension"},
		{"trailing dot", model.Input, "cube.", model.RuleMissingExtension, "has no file extension"},
		{"unsupported input", model.Input, "cube.xyz", model.RuleUnsupportedExtension, `inputPath has unsupported extension ".xyz"`},
		{"stl output", model.Output, "out.stl", model.RuleUnsupportedExtension, `outputPath has unsupported extension ".stl" (expected .glb)`},
		{"gltf output", model.Output, "out.gltf", model.RuleUnsupportedExtension, "expected .glb"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := model.ValidatePath("RunConversion", tc.role, tc.path)
			require.Error(t, err)
			var argErr *model.ArgumentError
			require.True(t, errors.As(err, &argErr))
			assert.Equal(t, tc.rule, argErr.Rule)
			assert.Equal(t, "RunConversion", argErr.Func)
			assert.Equal(t, tc.role.ArgName(), argErr.Arg)
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestValidatePathExactLengthLimit(t *testing.T) {
	t.Parallel()

	p := strings.Repeat("é", 996) + ".obj"
	assert.NoError(t, model.ValidatePath("RunConversion", model.Input, p))
}

func TestPathFromValueType(t *testing.T) {
	t.Parallel()

	v := model.NewPathValidator(nil)
	_, err := v.PathFromValue("RunConversion", model.Input, 123)
	require.Error(t, err)
	assert.Equal(t, "RunConversion: inputPath must be a string, got int", err.Error())

	_, err = v.PathFromValue("RunConversion", model.Output, nil)
	assert.EqualError(t, err, "RunConversion: outputPath must be a string, got null")

	got, err := v.PathFromValue("RunConversion", model.Input, "cube.obj")
	require.NoError(t, err)
	assert.Equal(t, "cube.obj", got)
}

func TestValidatorUsesFormatTable(t *testing.T) {
	t.Parallel()

	formats := model.NewFormatTable(model.Format{Ext: "obj", Name: "Wavefront OBJ"})
	v := model.NewPathValidator(formats)
	assert.NoError(t, v.Validate("f", model.Input, "a.obj"))
	assert.Error(t, v.Validate("f", model.Input, "a.stl"))

	formats.Register(".STL", "Stereolithography")
	assert.NoError(t, v.Validate("f", model.Input, "a.stl"))
	assert.Equal(t, []string{"obj", "stl"}, formats.Extensions())
}
