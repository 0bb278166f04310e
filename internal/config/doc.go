// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// Besides the selected source and repository URLs, the settings resolve the
// InstallTarget: the host application's color-management directory that
// receives the extracted configuration tree.
package config
