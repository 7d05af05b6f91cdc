// Package config loads rotationdash configuration.
//
// Sources are layered, later ones winning:
//
//  1. Default()
//  2. YAML file (ROTATION_CONFIG_FILE, config.yaml or configs/config.yaml)
//  3. Environment variables, prefixed ROTATION_
//
// Examples:
//
//	ROTATION_SERVER_PORT=8080
//	ROTATION_PROJECT_ROOT=/srv/lundong
//	ROTATION_SOURCE_MODE=remote
//	ROTATION_SOURCE_BASE_URL=https://example.org/data
//
// The project root is an explicit value. ResolveProjectRoot implements the
// parent-directory walk for entry points that were not given one.
package config
