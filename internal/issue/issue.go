// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Catalog entries.
const (
	FileNotFoundId Id = iota + 1
	NotAnArtifactId
	UnsupportedFormatVersionId
	TruncatedArtifactId
	CorruptArtifactId
	IncompatibleEngineId
	CompileFailedId
	ExecutionFailedId
	ConfigLoadFailedId
	CacheUnavailableId
	PermissionDeniedId
)

// DocsURL is the base of the online troubleshooting pages.
const DocsURL = "https://github.com/invowk/scriptc/blob/main/docs/troubleshooting.md"

type (
	// Id identifies a catalog entry.
	//
	//nolint:revive // Id mirrors the catalog constant names
	Id int

	// MarkdownMsg is catalog text in markdown.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	//
	//nolint:revive // HttpLink kept for symmetry with MarkdownMsg
	HttpLink string

	// Issue is a markdown explanation of a failure class.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
	}
)

// Id returns the catalog identifier.
func (i *Issue) Id() Id { return i.id } //nolint:revive // matches type name

// MarkdownMsg returns the raw markdown.
func (i *Issue) MarkdownMsg() MarkdownMsg { return i.mdMsg }

// DocLinks returns a copy of the documentation links.
func (i *Issue) DocLinks() []HttpLink { return slices.Clone(i.docLinks) }

// Markdown returns the message with a "See also" section for its links.
func (i *Issue) Markdown() string {
	var b strings.Builder
	b.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 {
		b.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			b.WriteString("- <" + string(link) + ">\n")
		}
	}
	return b.String()
}

// Render renders the markdown for a terminal using a glamour style such as
// "auto", "dark", "light" or "notty".
func (i *Issue) Render(style string) (string, error) {
	return render(i.Markdown(), style)
}

var (
	render = glamour.Render

	issues = map[Id]*Issue{}
)

func register(id Id, anchor string, md string) {
	issues[id] = &Issue{
		id:       id,
		mdMsg:    MarkdownMsg(md),
		docLinks: []HttpLink{HttpLink(DocsURL + "#" + anchor)},
	}
}

func init() {
	register(FileNotFoundId, "file-not-found", `
# File not found

scriptc could not open the file you named.

## Things you can try
- Check the path for typos
- Use `+"`-`"+` to read the script from standard input:
~~~
$ cat build.sh | scriptc compile - -o build.scbc
~~~`)

	register(NotAnArtifactId, "not-an-artifact", `
# Not a compiled artifact

The file does not start with the scriptc artifact signature. It is probably
a plain script or some other file.

## Things you can try
- Compile the script first:
~~~
$ scriptc compile build.sh -o build.scbc
$ scriptc run build.scbc
~~~
- Or compile and run in one step with `+"`scriptc exec build.sh`"+``)

	register(UnsupportedFormatVersionId, "unsupported-format-version", `
# Unsupported artifact format

The artifact was written with a layout revision this scriptc does not read.
Artifacts are not converted between revisions.

## Things you can try
- Recompile the original script with this scriptc
- Check which revision the file uses with `+"`scriptc inspect`"+``)

	register(TruncatedArtifactId, "truncated-artifact", `
# Truncated artifact

The artifact ends before the length recorded in its header. The file was
probably cut short while being copied or downloaded.

## Things you can try
- Copy or download the artifact again
- Recompile the original script`)

	register(CorruptArtifactId, "corrupt-artifact", `
# Corrupt artifact

The artifact header does not match its contents, for example extra bytes
follow the recorded payload. scriptc never runs a partially valid artifact.

## Things you can try
- Recompile the original script
- Compare the file with a known good copy`)

	register(IncompatibleEngineId, "incompatible-engine", `
# Artifact built by a different engine

Compiled payloads are tied to the exact interpreter build and shell dialect
that produced them. This artifact came from another build or dialect.

## Things you can try
- Recompile the script with this scriptc:
~~~
$ scriptc compile build.sh -o build.scbc
~~~
- If you changed `+"`engine.dialect`"+` or `+"`--dialect`"+`, use the dialect the
  artifact was compiled with
- Run `+"`scriptc inspect build.scbc`"+` to compare the artifact tag with this build`)

	register(CompileFailedId, "compile-failed", `
# Compilation failed

The shell parser rejected the script. The message above names the line and
column of the problem.

## Things you can try
- Fix the reported syntax error
- Check that the script matches the configured dialect (bash, posix, mksh, bats)`)

	register(ExecutionFailedId, "execution-failed", `
# Execution failed

The artifact was valid, but the interpreter could not finish running it. A
script that exits with a non-zero status is not an execution failure; this
means the run was interrupted or the interpreter hit an internal error.

## Things you can try
- Re-run with `+"`--verbose`"+` to see the full error chain
- Check the working directory and environment passed to the script`)

	register(ConfigLoadFailedId, "config-load-failed", `
# Configuration could not be loaded

The configuration file is missing, is not valid CUE, or contains values the
schema does not allow.

## Things you can try
- Print the schema:
~~~
$ scriptc config schema
~~~
- Write a fresh file with `+"`scriptc config init`"+``)

	register(CacheUnavailableId, "cache-unavailable", `
# Artifact cache unavailable

scriptc could not read or write its artifact cache directory.

## Things you can try
- Check permissions on the directory shown by `+"`scriptc cache dir`"+`
- Point `+"`cache.dir`"+` at a writable directory, or set `+"`cache.enabled: false`"+``)

	register(PermissionDeniedId, "permission-denied", `
# Permission denied

You do not have permission to read or write a file scriptc needed.

## Things you can try
- Check file and directory permissions
- Write the artifact somewhere you own with `+"`-o`"+``)
}

// Get returns the catalog entry for id, or nil.
func Get(id Id) *Issue {
	return issues[id]
}

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	ids := slices.Sorted(maps.Keys(issues))
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}
