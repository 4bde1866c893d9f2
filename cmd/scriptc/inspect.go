// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/invowk/scriptc/internal/engine/shell"
	"github.com/invowk/scriptc/pkg/artifact"
)

const (
	formatText = "text"
	formatJSON = "json"
)

type (
	// inspectReport is the JSON form of "scriptc inspect".
	inspectReport struct {
		Path             string         `json:"path"`
		Size             int            `json:"size"`
		FormatVersion    uint16         `json:"format_version"`
		EngineVersionTag string         `json:"engine_version_tag"`
		CurrentEngineTag string         `json:"current_engine_tag"`
		Compatible       bool           `json:"compatible"`
		SourceDigest     string         `json:"source_digest,omitempty"`
		HeaderSize       uint64         `json:"header_size"`
		PayloadLength    uint64         `json:"payload_length"`
		Payload          *payloadReport `json:"payload,omitempty"`
	}

	payloadReport struct {
		Dialect     string `json:"dialect"`
		Name        string `json:"name"`
		Compression string `json:"compression"`
		TreeSize    uint64 `json:"tree_size"`
		StoredSize  int    `json:"stored_size"`
	}
)

func newInspectCommand(app *App) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Show the header of a compiled artifact",
		Long: `Show the header of a compiled artifact without running it.

The artifact is fully validated. Its engine tag is compared with the engine
this scriptc would use, and payloads written by a shell engine are
described.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != formatText && format != formatJSON {
				return fmt.Errorf("unknown format %q (valid: text, json)", format)
			}
			return app.inspect(cmd.Context(), args[0], format)
		},
	}
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text or json")
	return cmd
}

func (a *App) inspect(_ context.Context, path, format string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileFailure(err, "read artifact", path)
	}
	h, err := artifact.Peek(data)
	if err != nil {
		return decodeFailure(err, "inspect artifact", path)
	}

	settings, err := a.engineSettings(path)
	if err != nil {
		return err
	}
	eng, err := a.newEngine(settings)
	if err != nil {
		return err
	}
	current := eng.VersionTag()
	_ = eng.Close()

	headerSize := h.Size() - h.PayloadLength
	report := inspectReport{
		Path:             path,
		Size:             len(data),
		FormatVersion:    h.FormatVersion,
		EngineVersionTag: h.EngineVersionTag.String(),
		CurrentEngineTag: current.String(),
		Compatible:       h.EngineVersionTag == current,
		SourceDigest:     h.DigestString(),
		HeaderSize:       headerSize,
		PayloadLength:    h.PayloadLength,
	}
	if info, err := shell.Describe(data[headerSize:]); err == nil {
		report.Payload = &payloadReport{
			Dialect:     info.Dialect,
			Name:        info.Name,
			Compression: info.Compression.String(),
			TreeSize:    info.TreeSize,
			StoredSize:  info.StoredSize,
		}
	}

	if format == formatJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	a.printReport(report)
	return nil
}

func (a *App) printReport(r inspectReport) {
	row := func(key string, value any) {
		fmt.Fprintf(a.stdout, "%s %v\n", KeyStyle.Render(fmt.Sprintf("%-16s", key+":")), value)
	}

	fmt.Fprintln(a.stdout, TitleStyle.Render("Artifact "+r.Path))
	row("Size", fmt.Sprintf("%d bytes", r.Size))
	row("Format version", r.FormatVersion)
	row("Engine tag", r.EngineVersionTag)
	if r.Compatible {
		row("Compatible", SuccessStyle.Render("yes"))
	} else {
		row("Compatible", WarningStyle.Render("no (this engine: "+r.CurrentEngineTag+")"))
	}
	if r.SourceDigest != "" {
		row("Source digest", r.SourceDigest)
	} else {
		row("Source digest", SubtitleStyle.Render("(none)"))
	}
	row("Header", fmt.Sprintf("%d bytes", r.HeaderSize))
	row("Payload", fmt.Sprintf("%d bytes", r.PayloadLength))
	if p := r.Payload; p != nil {
		row("Dialect", p.Dialect)
		row("Script name", p.Name)
		row("Compression", p.Compression)
		row("Syntax tree", fmt.Sprintf("%d bytes (%d stored)", p.TreeSize, p.StoredSize))
	}
}
