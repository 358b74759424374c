package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dukani-next/internal/delivery"

	"github.com/spf13/cobra"
)

func loadLocations(path string) (*delivery.Dataset, error) {
	dataset, err := delivery.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	return dataset, nil
}

func countiesCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "counties [county]",
		Short: "List counties, or the sub-counties and towns of one county",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := loadLocations(file)
			if err != nil {
				return err
			}
			return printCounties(cmd.OutOrStdout(), dataset, args)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "locations YAML; the embedded dataset when empty")
	return cmd
}

func printCounties(out io.Writer, dataset *delivery.Dataset, args []string) error {
	if len(args) == 0 {
		for _, name := range dataset.Counties() {
			fmt.Fprintf(out, "%-20s %s\n", name, delivery.Zone(name))
		}
		return nil
	}
	view, ok := dataset.County(args[0])
	if !ok {
		return fmt.Errorf("unknown county %q", args[0])
	}
	return writeJSON(out, view)
}

func quoteCmd() *cobra.Command {
	var (
		file      string
		subCounty string
		town      string
	)
	cmd := &cobra.Command{
		Use:   "quote [county] [courier]",
		Short: "Price a delivery",
		Long: `Price a delivery the way checkout does.

Examples:
  dukactl quote Nairobi SENDY
  dukactl quote Kisumu G4S --sub-county "Kisumu Central" --town Milimani`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dataset, err := loadLocations(file)
			if err != nil {
				return err
			}
			quote, err := dataset.Quote(delivery.QuoteInput{
				County:    args[0],
				SubCounty: subCounty,
				Town:      town,
				CourierID: args[1],
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), quote)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "locations YAML; the embedded dataset when empty")
	cmd.Flags().StringVar(&subCounty, "sub-county", "", "sub-county within the county")
	cmd.Flags().StringVar(&town, "town", "", "town within the sub-county")
	return cmd
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
