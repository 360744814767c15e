package cmd

import (
	"fmt"
	"io"
	"strings"

	"toolgate/internal/registry"
	"toolgate/internal/tools"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

// newToolsCmd lists the built-in tools without starting the server.
func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools served by toolgate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.New()
			if err := tools.RegisterBuiltins(reg); err != nil {
				return err
			}
			reg.Seal()
			renderTools(cmd.OutOrStdout(), reg.List())
			return nil
		},
	}
}

func renderTools(w io.Writer, defs []registry.Definition) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TOOL"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
		text.FgHiCyan.Sprint("PARAMETERS"),
	})

	for _, def := range defs {
		t.AppendRow(table.Row{def.Name, def.Description, formatParams(def.Schema)})
	}
	t.Render()

	fmt.Fprintf(w, "%s %d\n", text.FgHiBlue.Sprint("Total:"), len(defs))
}

// formatParams renders a schema as "a: number (required), b: string".
func formatParams(s registry.Schema) string {
	if len(s.Fields) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		p := fmt.Sprintf("%s: %s", f.Name, f.Type)
		if f.Required {
			p += " (required)"
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, ", ")
}
