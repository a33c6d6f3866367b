package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smartbuy/internal/geocoding"
)

func geocodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "geocode",
		Short: "Locate transactions without coordinates by their area name",
		Long: `Geocode every area that has transactions without coordinates and place
those transactions at the area's position. Results are cached on disk, so
re-running only queries new areas.`,
		Args: cobra.NoArgs,
		RunE: runGeocode,
	}
}

func runGeocode(cmd *cobra.Command, _ []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	geocoder := geocoding.NewGeocoder(cfg, logger)
	result, err := geocoding.UpdateMissingCoordinates(cmd.Context(), db, geocoder, logger)
	if saveErr := geocoder.SaveCache(); saveErr != nil {
		logger.WithError(saveErr).Warn("Failed to save geocode cache")
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Located %d of %d areas, updated %d transactions\n",
		result.Located, result.Areas, result.Transactions)
	return nil
}
