package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dukani-next/internal/models"
	"github.com/dukani-next/internal/repository"

	"github.com/shopspring/decimal"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	slugInvalidRune = regexp.MustCompile(`[^a-z0-9]+`)
)

// ProductService catalog
type ProductService struct {
	repo repository.ProductRepository
}

// NewProductService builds the service
func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// ProductInput create / update input
type ProductInput struct {
	Slug        string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	ImageURL    string
	Stock       int
	TrackStock  *bool // nil tracks once a positive stock is given and never untracks
	IsActive    *bool
	SortOrder   int
}

// ListPublic active products
func (s *ProductService) ListPublic(category, search string, page, pageSize int) ([]models.Product, int64, error) {
	return s.repo.List(repository.ProductListFilter{
		Page:       page,
		PageSize:   pageSize,
		Category:   strings.TrimSpace(category),
		Search:     strings.TrimSpace(search),
		OnlyActive: true,
	})
}

// GetPublicBySlug active product by slug
func (s *ProductService) GetPublicBySlug(slug string) (*models.Product, error) {
	product, err := s.repo.GetBySlug(slug, true)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// ListAdmin all products
func (s *ProductService) ListAdmin(category, search string, page, pageSize int) ([]models.Product, int64, error) {
	return s.repo.List(repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Category: strings.TrimSpace(category),
		Search:   strings.TrimSpace(search),
	})
}

// GetAdminByID product by id, active or not
func (s *ProductService) GetAdminByID(id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Create validates and stores a product; the slug is derived from the name when empty
func (s *ProductService) Create(input ProductInput) (*models.Product, error) {
	product := &models.Product{IsActive: true}
	if err := s.apply(product, input); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(product.Slug, 0); err != nil {
		return nil, err
	}
	if err := s.repo.Create(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Update replaces editable fields
func (s *ProductService) Update(id uint, input ProductInput) (*models.Product, error) {
	product, err := s.GetAdminByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(product, input); err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(product.Slug, product.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Update(product); err != nil {
		return nil, err
	}
	return product, nil
}

// Delete soft deletes; existing orders keep their item snapshots
func (s *ProductService) Delete(id uint) error {
	if _, err := s.GetAdminByID(id); err != nil {
		return err
	}
	return s.repo.Delete(id)
}

func (s *ProductService) apply(product *models.Product, input ProductInput) error {
	name := truncateRunes(input.Name, 200)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrProductInvalid)
	}
	price := input.Price.Round(2)
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be greater than 0", ErrProductInvalid)
	}
	if input.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrProductInvalid)
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if slug == "" {
		slug = Slugify(name)
	}
	if !slugPattern.MatchString(slug) {
		return fmt.Errorf("%w: slug may only contain a-z, 0-9 and dashes", ErrProductInvalid)
	}

	product.Slug = slug
	product.Name = name
	product.Description = strings.TrimSpace(input.Description)
	product.Category = truncateRunes(input.Category, 100)
	product.Price = models.NewMoneyFromDecimal(price)
	product.ImageURL = strings.TrimSpace(input.ImageURL)
	product.Stock = input.Stock
	if input.TrackStock != nil {
		product.TrackStock = *input.TrackStock
	} else if input.Stock > 0 {
		product.TrackStock = true
	}
	product.SortOrder = input.SortOrder
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
	return nil
}

func (s *ProductService) ensureSlugFree(slug string, selfID uint) error {
	existing, err := s.repo.GetBySlug(slug, false)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrProductSlugExists
	}
	return nil
}

// Slugify lowercases and joins alphanumeric runs with dashes
func Slugify(text string) string {
	slug := slugInvalidRune.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), "-")
	return strings.Trim(slug, "-")
}
