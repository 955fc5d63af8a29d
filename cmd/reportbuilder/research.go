package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/hyperifyio/reportbuilder/internal/app"
	"github.com/hyperifyio/reportbuilder/internal/report"
	"github.com/hyperifyio/reportbuilder/internal/research"
)

type researchOptions struct {
	jsonPath string
	outPath  string
	pdfPath  string
	noReport bool
}

func newResearchCmd(g *globalOptions) *cobra.Command {
	o := &researchOptions{}
	cmd := &cobra.Command{
		Use:   "research <topic...>",
		Short: "Research a topic and write a report",
		Long: `Research plans sub-questions for the topic, gathers sources for each and
writes a Markdown report to stdout or --out. With --no-report only the
structured research is produced and no model is needed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := g.setup(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return o.run(cmd, a, strings.Join(args, " "))
		},
	}
	cmd.Flags().StringVar(&o.jsonPath, "json", "", "Write the structured research as JSON to this path")
	cmd.Flags().StringVar(&o.outPath, "out", "", "Write the Markdown report to this path instead of stdout")
	cmd.Flags().StringVar(&o.pdfPath, "pdf", "", "Also render the report as PDF to this path")
	cmd.Flags().BoolVar(&o.noReport, "no-report", false, "Stop after research; print the research JSON")
	return cmd
}

func (o *researchOptions) run(cmd *cobra.Command, a *app.App, topic string) error {
	ctx := cmd.Context()
	if o.noReport {
		out, _, err := a.Research(ctx, topic)
		if err != nil {
			return err
		}
		if o.jsonPath != "" {
			return writeJSONFile(o.jsonPath, out)
		}
		return writeJSON(cmd.OutOrStdout(), out)
	}

	if err := app.ValidateConfig(a.Config(), true); err != nil {
		return err
	}
	res, err := a.GenerateReport(ctx, topic)
	if o.jsonPath != "" && len(res.Research.Sections) > 0 {
		if werr := writeJSONFile(o.jsonPath, res.Research); werr != nil {
			log.Warn().Err(werr).Str("path", o.jsonPath).Msg("could not write research JSON")
		}
	}
	if err != nil {
		return err
	}

	if o.outPath != "" {
		if err := os.WriteFile(o.outPath, []byte(res.Markdown), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info().Str("path", o.outPath).Msg("report written")
	} else if _, err := io.WriteString(cmd.OutOrStdout(), res.Markdown); err != nil {
		return err
	}
	if o.pdfPath != "" {
		if err := report.WritePDF(res.Report, o.pdfPath); err != nil {
			return fmt.Errorf("write pdf: %w", err)
		}
		log.Info().Str("path", o.pdfPath).Msg("pdf written")
	}
	return nil
}

func writeJSON(w io.Writer, out research.Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeJSONFile(path string, out research.Output) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeJSON(f, out); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
