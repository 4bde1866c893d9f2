// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the scriptc command line interface.
//
// The root command wires configuration, logging and the shell engine into
// the compile, run, exec and inspect commands. Command handlers return
// errors; the root renders them once through fang and maps them to the
// process exit status.
package cmd
