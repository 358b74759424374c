package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type seedProduct struct {
	Slug        string
	Name        string
	Category    string
	Description string
	Price       int64
	Stock       int
	TrackStock  bool
}

var demoCatalog = []seedProduct{
	{Slug: "jiko-charcoal-stove", Name: "Jiko Charcoal Stove", Category: "kitchen", Description: "Energy saving ceramic-lined jiko.", Price: 1500, Stock: 40, TrackStock: true},
	{Slug: "sufuria-set-5pc", Name: "Sufuria Set (5 pc)", Category: "kitchen", Description: "Aluminium sufurias with lids.", Price: 2499, Stock: 25, TrackStock: true},
	{Slug: "kikoi-beach-towel", Name: "Kikoi Beach Towel", Category: "textiles", Description: "Hand-woven cotton kikoi.", Price: 850, Stock: 60, TrackStock: true},
	{Slug: "maasai-shuka", Name: "Maasai Shuka", Category: "textiles", Description: "Checked red shuka blanket.", Price: 1200, Stock: 0},
	{Slug: "solar-lamp-mini", Name: "Mini Solar Lamp", Category: "electronics", Description: "USB charging solar lamp.", Price: 1999, Stock: 15, TrackStock: true},
	{Slug: "kiondo-basket", Name: "Kiondo Basket", Category: "crafts", Description: "Sisal kiondo with leather straps.", Price: 1350, Stock: 12, TrackStock: true},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the demo catalog; existing slugs are left alone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := openDatabase(); err != nil {
				return err
			}
			if err := models.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			products := service.NewProductService(repository.NewProductRepository(models.DB))
			return seedCatalog(cmd.OutOrStdout(), products, demoCatalog)
		},
	}
}

func seedCatalog(out io.Writer, products *service.ProductService, catalog []seedProduct) error {
	created := 0
	for _, item := range catalog {
		track := item.TrackStock
		_, err := products.Create(service.ProductInput{
			Slug:        item.Slug,
			Name:        item.Name,
			Description: item.Description,
			Category:    item.Category,
			Price:       decimal.NewFromInt(item.Price),
			Stock:       item.Stock,
			TrackStock:  &track,
		})
		switch {
		case err == nil:
			created++
			fmt.Fprintf(out, "created %s\n", item.Slug)
		case errors.Is(err, service.ErrProductSlugExists):
			fmt.Fprintf(out, "exists  %s\n", item.Slug)
		default:
			return fmt.Errorf("seed %s: %w", item.Slug, err)
		}
	}
	fmt.Fprintf(out, "%d of %d products created\n", created, len(catalog))
	return nil
}
