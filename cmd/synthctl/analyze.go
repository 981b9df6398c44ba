package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nathanbogale/CrediSynth/internal/api"
	"github.com/nathanbogale/CrediSynth/internal/app"
	"github.com/nathanbogale/CrediSynth/internal/config"
	"github.com/nathanbogale/CrediSynth/internal/engine"
	"github.com/nathanbogale/CrediSynth/internal/payload"
)

func analyzeCmd() *cobra.Command {
	var (
		offline       bool
		audit         bool
		correlationID string
	)
	cmd := &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Analyze a payload file and print the response document",
		Long: `Analyze reads a feature report or assessment bundle and prints the same JSON the
HTTP endpoint would return. Use - to read from stdin.

Examples:
  synthctl analyze testdata/feature.json
  synthctl analyze --offline - < bundle.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := app.SetupLogging(cfg); err != nil {
				return err
			}
			logrus.SetOutput(cmd.ErrOrStderr())
			if offline {
				cfg.Generation.Disabled = true
			}
			cfg.AuditDisabled = !audit

			_, chain, err := app.Generation(cfg)
			if err != nil {
				return err
			}
			db, err := app.Audit(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			res, err := app.Engine(chain, db).Analyze(cmd.Context(), engine.Request{
				Body:          body,
				CorrelationID: correlationID,
			})
			if err != nil {
				var engineErr *engine.Error
				if errors.As(err, &engineErr) {
					_ = writeJSON(cmd.OutOrStdout(), api.ErrorResponse{
						Error: api.ErrorBody{
							Status:  string(engineErr.Kind),
							Message: engineErr.Message(),
							Path:    engineErr.Path,
						},
						AnalysisID:    engineErr.AnalysisID,
						CorrelationID: engineErr.CorrelationID,
					})
				}
				return err
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, res.Body(), "", "  "); err != nil {
				return fmt.Errorf("format response: %w", err)
			}
			pretty.WriteByte('\n')
			_, err = pretty.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip report generation and answer from heuristics")
	cmd.Flags().BoolVar(&audit, "audit", false, "record the analysis in the audit store")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id to attach")
	return cmd
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [file|-]",
		Short: "Report which payload shape a file resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			p, err := payload.Parse(body)
			if err != nil {
				return fmt.Errorf("classify: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), struct {
				Shape      payload.Shape     `json:"shape"`
				RequestID  string            `json:"request_id"`
				CustomerID string            `json:"customer_id"`
				Warnings   []payload.Warning `json:"warnings,omitempty"`
			}{
				Shape:      p.Shape,
				RequestID:  p.RequestID(),
				CustomerID: p.CustomerID(),
				Warnings:   p.Warnings,
			})
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	body, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return body, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
