package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"smartbuy/internal/api"
	"smartbuy/internal/dataset"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the pattern analysis for a selection and print it as JSON",
		Example: `  smartbuy analyze --area "Dubai Marina" --bedrooms "1 B/R"
  smartbuy analyze --min-price 1000000 --max-price 2000000 --recommend`,
		Args: cobra.NoArgs,
		RunE: runAnalyze,
	}

	cmd.Flags().StringSlice("area", nil, "Areas to include")
	cmd.Flags().StringSlice("property-type", nil, "Property types to include")
	cmd.Flags().StringSlice("bedrooms", nil, "Bedroom categories to include")
	cmd.Flags().Float64("min-price", 0, "Minimum price, inclusive")
	cmd.Flags().Float64("max-price", 0, "Maximum price, inclusive")
	cmd.Flags().String("start-date", "", "First day, YYYY-MM-DD")
	cmd.Flags().String("end-date", "", "Last day, YYYY-MM-DD")
	cmd.Flags().Bool("recommend", false, "Print the per-area recommendations instead")
	return cmd
}

func runAnalyze(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var q api.SelectionQuery
	q.Areas, _ = flags.GetStringSlice("area")
	q.PropertyTypes, _ = flags.GetStringSlice("property-type")
	q.Bedrooms, _ = flags.GetStringSlice("bedrooms")
	q.StartDate, _ = flags.GetString("start-date")
	q.EndDate, _ = flags.GetString("end-date")
	if flags.Changed("min-price") {
		v, _ := flags.GetFloat64("min-price")
		q.MinPrice = &v
	}
	if flags.Changed("max-price") {
		v, _ := flags.GetFloat64("max-price")
		q.MaxPrice = &v
	}
	recommend, _ := flags.GetBool("recommend")

	criteria, err := q.Criteria()
	if err != nil {
		return err
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := dataset.NewStore(db, logger).Refresh(cmd.Context())
	if err != nil {
		return err
	}

	var out interface{}
	if recommend {
		out, err = snap.Analyzer.Recommend(cmd.Context(), snap.Transactions, criteria, cfg.Analysis.TopN, cfg.Analysis.Workers)
	} else {
		out, err = snap.Analyzer.Analyze(snap.Transactions, criteria)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}
