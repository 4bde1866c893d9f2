// SPDX-License-Identifier: MPL-2.0

// Package cueutil validates user-supplied CUE documents against an embedded
// schema and decodes them into Go values.
//
// Every decode follows the same flow: compile the schema, compile the user
// document under its file name, unify the document with a schema
// definition, validate, then decode. Errors carry the file name and the
// JSON-style path of the offending field:
//
//	config.cue: engine.dialect: 2 errors in empty disjunction: ...
//
// # Usage
//
//	//go:embed config_schema.cue
//	var schema []byte
//
//	values, err := cueutil.Decode[map[string]any](schema, data, "#Config",
//	    cueutil.WithFilename(path),
//	    cueutil.WithConcrete(false),
//	)
package cueutil
