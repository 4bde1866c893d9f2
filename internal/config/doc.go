// SPDX-License-Identifier: MPL-2.0

// Package config loads scriptc settings using Viper with CUE as the file format.
//
// Settings come from, in increasing precedence: built-in defaults, the CUE
// file (config.cue in the platform config directory, or the file named by
// --config), and SCRIPTC_* environment variables (SCRIPTC_ENGINE_DIALECT,
// SCRIPTC_CACHE_ENABLED, ...). The file is validated against the embedded
// config_schema.cue before it is merged, so unknown keys and invalid enum
// values are reported with their CUE path.
package config
