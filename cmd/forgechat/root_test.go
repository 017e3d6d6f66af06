// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "sweep")

	flag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := NewRootCmd()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"chat-addr", "admin-addr", "metrics-addr", "plugins-dir", "log-format"} {
		assert.NotNil(t, serve.Flags().Lookup(name), "missing flag %s", name)
	}
}

func TestRootCmd_Help(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "forgechat")
}
