package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hirelens/hirelens/internal/model"
	"github.com/hirelens/hirelens/internal/store"
)

var (
	recordsKind          string
	recordsSession       string
	recordsMinConfidence float64
	recordsLimit         int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List stored extraction records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := store.RecordFilter{
			SessionID:     recordsSession,
			MinConfidence: recordsMinConfidence,
			Limit:         recordsLimit,
		}
		if recordsKind != "" {
			kind, err := parseKind(recordsKind)
			if err != nil {
				return err
			}
			filter.Kind = kind
		}

		records, err := st.ListRecords(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "list records")
		}
		if records == nil {
			records = []model.ExtractedRecord{}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

func init() {
	recordsCmd.Flags().StringVar(&recordsKind, "kind", "", "filter by kind: job or form")
	recordsCmd.Flags().StringVar(&recordsSession, "session", "", "filter by session id")
	recordsCmd.Flags().Float64Var(&recordsMinConfidence, "min-confidence", 0, "minimum final confidence")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 0, "max records to return (default 100)")
	rootCmd.AddCommand(recordsCmd)
}
