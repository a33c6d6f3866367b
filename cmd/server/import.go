package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"smartbuy/internal/importer"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load transaction exports or pattern tables into the database",
	}

	transactions := &cobra.Command{
		Use:   "transactions [csv]",
		Short: "Import a transaction CSV export",
		Long: `Import a Dubai Land Department transaction export. Rows are upserted by
transaction id, so importing the same file twice is safe. Malformed rows are
skipped and reported.`,
		Args: cobra.ExactArgs(1),
		RunE: runImportTransactions,
	}
	transactions.Flags().Bool("no-progress", false, "Disable the progress bar")

	patterns := &cobra.Command{
		Use:   "patterns [file]",
		Short: "Replace the pattern table from a CSV or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportPatterns,
	}

	cmd.AddCommand(transactions, patterns)
	return cmd
}

func runImportTransactions(cmd *cobra.Command, args []string) error {
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	var onBatch func(n int)
	var bar *progressbar.ProgressBar
	if !noProgress {
		bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("Importing transactions"),
		)
		onBatch = func(n int) { _ = bar.Add(n) }
	}

	result, err := importer.NewImporter(cfg, logger).ImportTransactions(cmd.Context(), f, db, onBatch)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}

	for _, rowErr := range result.Skipped {
		fmt.Fprintf(os.Stderr, "skipped %v\n", rowErr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d transactions in %d batches, skipped %d rows\n",
		result.Stats.Transactions, result.Stats.Batches, len(result.Skipped))
	return nil
}

func runImportPatterns(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := importer.NewImporter(cfg, logger).ImportPatterns(cmd.Context(), args[0], db)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d patterns\n", len(entries))
	return nil
}
