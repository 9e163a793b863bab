package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nekruzvatanshoev/carprice/pkg/carprice/pipeline"
)

var predictInput string

func init() {
	PredictCmd.Flags().StringVarP(&predictInput, "input", "i", "-", "JSON file with a car object or an array of them (- for stdin)")
}

var PredictCmd = &cobra.Command{
	Use:   PredictCmdName,
	Short: PredictCmdShort,
	Long:  PredictCmdLong,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := buildPipeline(cfg, logger)
		if err != nil {
			return err
		}

		payload, err := readInput(cmd.InOrStdin(), predictInput)
		if err != nil {
			return err
		}

		out := json.NewEncoder(cmd.OutOrStdout())
		out.SetIndent("", "  ")

		trimmed := bytes.TrimSpace(payload)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var items []json.RawMessage
			if err := json.Unmarshal(trimmed, &items); err != nil {
				return fmt.Errorf("expected a list of car records: %w", err)
			}
			return out.Encode(p.PredictRaw(cmd.Context(), items))
		}

		rec, err := pipeline.DecodeRecord(trimmed)
		if err != nil {
			return err
		}
		res, err := p.Predict(cmd.Context(), rec)
		if err != nil {
			return err
		}
		return out.Encode(res)
	},
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
