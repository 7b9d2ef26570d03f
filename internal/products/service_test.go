package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/davidruizdev/storefront-backend/pkg/config"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Polo Sporting Stretch Shirt": "polo-sporting-stretch-shirt",
		"  Brooks Brothers  ":         "brooks-brothers",
		"Shirt (Large) v2.0":          "shirt-large-v2-0",
		"---":                         "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateCreate(t *testing.T) {
	t.Run("defaultsSlugFromName", func(t *testing.T) {
		input := CreateProductInput{
			Name:        "Polo Shirt",
			Category:    "Mens Shirts",
			Brand:       "Polo",
			Description: "desc",
			Price:       decimal.RequireFromString("59.99"),
			Stock:       5,
		}
		if err := validateCreate(&input); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if input.Slug != "polo-shirt" {
			t.Fatalf("expected derived slug, got %q", input.Slug)
		}
	})

	t.Run("negativePrice", func(t *testing.T) {
		input := CreateProductInput{
			Name:     "Polo Shirt",
			Category: "Mens Shirts",
			Brand:    "Polo",
			Price:    decimal.RequireFromString("-1"),
		}
		err := validateCreate(&input)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("missingName", func(t *testing.T) {
		input := CreateProductInput{Category: "c", Brand: "b"}
		if err := validateCreate(&input); err == nil {
			t.Fatal("expected validation error for missing name")
		}
	})
}

func TestApplyUpdateTrimsAndCopies(t *testing.T) {
	product := &models.Product{Name: "Old Name", Slug: "old-name", Stock: 3}
	name := "  New Name "
	stock := 7

	if err := applyUpdate(product, UpdateProductInput{Name: &name, Stock: &stock}); err != nil {
		t.Fatalf("apply update: %v", err)
	}
	if product.Name != "New Name" {
		t.Fatalf("expected trimmed name, got %q", product.Name)
	}
	if product.Stock != 7 {
		t.Fatalf("expected stock 7, got %d", product.Stock)
	}

	empty := "  "
	if err := applyUpdate(product, UpdateProductInput{Name: &empty}); err == nil {
		t.Fatal("expected validation error for empty name")
	}
}

func TestListValidatesFilters(t *testing.T) {
	svc, err := NewService(NewRepository(nil), config.CatalogConfig{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	min := decimal.RequireFromString("50")
	max := decimal.RequireFromString("10")
	_, err = svc.List(context.Background(), ListInput{
		Filters: ListFilters{PriceMin: &min, PriceMax: &max},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	bad := 9
	_, err = svc.List(context.Background(), ListInput{
		Filters: ListFilters{RatingMin: &bad},
	})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
