package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"screwdiag/adapters/excel"
	"screwdiag/domain/core"
	"screwdiag/domain/curve"
	"screwdiag/internal/config"
	"screwdiag/internal/container"
	"screwdiag/internal/report"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "screwdiag-cli",
		Short: "Screwdiag CLI for diagnosing fastening payloads and inspecting carrier models",
	}

	rootCmd.AddCommand(
		newDiagnoseCmd(),
		newReportCmd(),
		newResetCmd(),
		newListCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildContainer(ctx context.Context) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return container.New(ctx, cfg)
}

func newDiagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose [payload.json]",
		Short: "Diagnose a batch payload of fastening curves",
		Long: `Diagnose every carrier and hole in a JSON payload file.

The payload maps carrier_id -> hole_id -> {torque, angle, time}.

Example: screwdiag-cli diagnose shift_042.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read payload: %w", err)
			}

			var payload map[core.CarrierID]map[core.HoleID]curve.Curve
			if err := json.Unmarshal(data, &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}

			ctx := cmd.Context()
			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			results, err := c.Engine.DiagnoseBatch(ctx, payload)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	return cmd
}

func newReportCmd() *cobra.Command {
	var xlsxPath string

	cmd := &cobra.Command{
		Use:   "report [carrier-id]",
		Short: "Print a carrier model report, optionally exporting a workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			model, err := c.Engine.ModelSnapshot(ctx, core.CarrierID(args[0]))
			if err != nil {
				return err
			}

			fmt.Println(report.BuildMarkdown(model))

			if xlsxPath != "" {
				if err := excel.NewReportWriter().Write(model, xlsxPath); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "workbook written to %s\n", xlsxPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "also export the report as an xlsx workbook")
	return cmd
}

func newResetCmd() *cobra.Command {
	var holeID string

	cmd := &cobra.Command{
		Use:   "reset [carrier-id]",
		Short: "Reset a carrier (or one hole) back to cold start",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			carrierID := core.CarrierID(args[0])
			if holeID != "" {
				return c.Engine.ResetHole(ctx, carrierID, core.HoleID(holeID))
			}
			return c.Engine.ResetCarrier(ctx, carrierID)
		},
	}

	cmd.Flags().StringVar(&holeID, "hole", "", "reset only this hole")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known carriers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := buildContainer(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			ids, err := c.Engine.Carriers(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
