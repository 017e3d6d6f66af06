// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_LoadCreatesShadow(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "greet.so")

	img := newFakeImage("hi", "greets the room", nil)
	loader := NewLoader(staticOpener(img))

	loaded, err := loader.Load(context.Background(), original)
	require.NoError(t, err)

	assert.Equal(t, "hi", loaded.Name)
	assert.Equal(t, "greets the room", loaded.Description)

	shadows := shadowFiles(t, dir)
	require.Len(t, shadows, 1)
	assert.Equal(t, shadows[0], loaded.ShadowPath)
	assert.True(t, strings.HasSuffix(loaded.ShadowPath, "_greet.so"))

	// Shadow content matches the artifact.
	data, err := os.ReadFile(loaded.ShadowPath)
	require.NoError(t, err)
	assert.Equal(t, "not a real library", string(data))
}

func TestLoader_NeverLocksOriginal(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "greet.so")

	loader := NewLoader(staticOpener(newFakeImage("hi", "d", nil)))
	_, err := loader.Load(context.Background(), original)
	require.NoError(t, err)

	// The author-facing artifact stays free for overwrite and deletion.
	require.NoError(t, os.WriteFile(original, []byte("recompiled"), 0o755))
	require.NoError(t, os.Remove(original))
}

func TestLoader_MissingArtifact(t *testing.T) {
	loader := NewLoader(staticOpener(newFakeImage("hi", "d", nil)))

	_, err := loader.Load(context.Background(), filepath.Join(t.TempDir(), "nope.so"))
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, oopsErr.Code())
}

func TestLoader_MissingEntryPoint(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "broken.so")

	img := &fakeImage{symbols: map[string]any{
		SymbolName:        func() string { return "broken" },
		SymbolDescription: func() string { return "d" },
		// HandleMessage missing
	}}
	loader := NewLoader(staticOpener(img))

	_, err := loader.Load(context.Background(), original)
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeContractViolation, oopsErr.Code())

	// Partial handle released, shadow cleaned up.
	assert.True(t, img.closed.Load())
	assert.Empty(t, shadowFiles(t, dir))
}

func TestLoader_WrongSignature(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "broken.so")

	img := &fakeImage{symbols: map[string]any{
		SymbolName:          func() string { return "broken" },
		SymbolDescription:   func() string { return "d" },
		SymbolHandleMessage: func() string { return "wrong shape" },
	}}
	loader := NewLoader(staticOpener(img))

	_, err := loader.Load(context.Background(), original)
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeContractViolation, oopsErr.Code())
}

func TestLoader_PanickingNameGetter(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "hostile.so")

	img := &fakeImage{symbols: map[string]any{
		SymbolName:          func() string { panic("no name for you") },
		SymbolDescription:   func() string { return "d" },
		SymbolHandleMessage: func(string, string) string { return "" },
	}}
	loader := NewLoader(staticOpener(img))

	_, err := loader.Load(context.Background(), original)
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeContractViolation, oopsErr.Code())
	assert.Empty(t, shadowFiles(t, dir))
}

func TestLoader_EmptyName(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "anon.so")

	loader := NewLoader(staticOpener(newFakeImage("", "d", nil)))

	_, err := loader.Load(context.Background(), original)
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeContractViolation, oopsErr.Code())
}

func TestLoader_OpenFailureRemovesShadow(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "corrupt.so")

	loader := NewLoader(func(string) (Image, error) {
		return nil, os.ErrInvalid
	})

	_, err := loader.Load(context.Background(), original)
	require.Error(t, err)
	assert.Empty(t, shadowFiles(t, dir))
}

func TestLoader_UniqueShadowsPerLoad(t *testing.T) {
	dir := t.TempDir()
	original := writeArtifact(t, dir, "greet.so")

	loader := NewLoader(factoryOpener("hi", "d"))

	first, err := loader.Load(context.Background(), original)
	require.NoError(t, err)
	second, err := loader.Load(context.Background(), original)
	require.NoError(t, err)

	assert.NotEqual(t, first.ShadowPath, second.ShadowPath)
	assert.Len(t, shadowFiles(t, dir), 2)
}
