package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hirelens/hirelens/internal/model"
)

var (
	runURL  string
	runKind string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a single URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		kind, err := parseKind(runKind)
		if err != nil {
			return err
		}

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := orch.ProcessURL(ctx, "", runURL, kind)
		if err != nil {
			return eris.Wrap(err, "process url")
		}

		zap.L().Info("processing complete",
			zap.String("url", runURL),
			zap.String("quality", string(rec.QualityLabel)),
			zap.Float64("final_confidence", rec.FinalConfidence),
			zap.Int("input_tokens", rec.TokenUsage.InputTokens),
			zap.Int("output_tokens", rec.TokenUsage.OutputTokens),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

func parseKind(s string) (model.DocumentKind, error) {
	switch s {
	case "job":
		return model.KindJob, nil
	case "form":
		return model.KindForm, nil
	default:
		return "", eris.Errorf("unknown kind %q (want job or form)", s)
	}
}

func init() {
	runCmd.Flags().StringVar(&runURL, "url", "", "document URL (required)")
	runCmd.Flags().StringVar(&runKind, "kind", "job", "document kind: job or form")
	_ = runCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(runCmd)
}
