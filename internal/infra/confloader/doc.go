// Package confloader loads layered settings with koanf.
//
// Priority (highest to lowest):
//
//  1. Values applied with LoadMap after Load (command-line flags)
//  2. Environment variables (AERIE_CLI_ prefix, "_" separates levels)
//  3. YAML file
//  4. Defaults
package confloader
