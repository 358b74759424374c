package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dukani-next/internal/delivery"
	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"
	"github.com/dukani-next/internal/service"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:dukactl_seed?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := models.MigrateDB(db); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	products := service.NewProductService(repository.NewProductRepository(db))

	var out bytes.Buffer
	if err := seedCatalog(&out, products, demoCatalog); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "6 of 6 products created") {
		t.Fatalf("unexpected output %q", out.String())
	}

	out.Reset()
	if err := seedCatalog(&out, products, demoCatalog); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if !strings.Contains(out.String(), "0 of 6 products created") || !strings.Contains(out.String(), "exists  jiko-charcoal-stove") {
		t.Fatalf("reseed should skip existing slugs, got %q", out.String())
	}
}

func TestPrintCounties(t *testing.T) {
	var out bytes.Buffer
	if err := printCounties(&out, delivery.Default(), nil); err != nil {
		t.Fatalf("list counties: %v", err)
	}
	if !strings.Contains(out.String(), "Nairobi") || !strings.Contains(out.String(), "Mombasa") {
		t.Fatalf("county list missing entries: %s", out.String())
	}

	out.Reset()
	if err := printCounties(&out, delivery.Default(), []string{"nairobi"}); err != nil {
		t.Fatalf("county detail: %v", err)
	}
	if !strings.Contains(out.String(), "Westlands") {
		t.Fatalf("county detail missing sub-county: %s", out.String())
	}

	if err := printCounties(&out, delivery.Default(), []string{"Gotham"}); err == nil {
		t.Fatalf("unknown county should fail")
	}
}

func TestQuoteCommand(t *testing.T) {
	cmd := quoteCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"Nairobi", "SENDY"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("quote failed: %v", err)
	}
	if !strings.Contains(out.String(), `"fee": 250`) {
		t.Fatalf("unexpected quote %s", out.String())
	}

	bad := quoteCmd()
	bad.SetOut(&out)
	bad.SetErr(&out)
	bad.SetArgs([]string{"Nairobi", "NOPE"})
	if err := bad.Execute(); err == nil {
		t.Fatalf("unknown courier should fail")
	}
}
