// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package plugin

import (
	"fmt"
	"os"
	"strings"
)

// SidecarSuffix is appended to an artifact path to name its metadata file.
const SidecarSuffix = ".txt"

// WriteSidecar records a plugin's self-reported identity next to its
// artifact so List can describe the artifact without loading it.
// The format is two lines: command name, then description.
func WriteSidecar(artifactPath, name, description string) error {
	data := name + "\n" + description + "\n"
	if err := os.WriteFile(artifactPath+SidecarSuffix, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// ReadSidecar recovers the identity recorded by WriteSidecar.
func ReadSidecar(artifactPath string) (name, description string, err error) {
	data, err := os.ReadFile(artifactPath + SidecarSuffix)
	if err != nil {
		return "", "", fmt.Errorf("read sidecar: %w", err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		name = strings.TrimSpace(lines[0])
	}
	if len(lines) > 1 {
		description = strings.TrimSpace(lines[1])
	}
	if name == "" {
		return "", "", fmt.Errorf("sidecar for %s has no command name", artifactPath)
	}
	return name, description, nil
}
