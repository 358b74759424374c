package repository

import (
	"errors"
	"strings"

	"github.com/dukani-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository catalog access
type ProductRepository interface {
	GetByID(id uint) (*models.Product, error)
	GetBySlug(slug string, onlyActive bool) (*models.Product, error)
	ListByIDs(ids []uint) ([]models.Product, error)
	List(filter ProductListFilter) ([]models.Product, int64, error)
	Create(product *models.Product) error
	Update(product *models.Product) error
	Delete(id uint) error
	DecrementStock(id uint, quantity int) (int64, error)
	IncrementStock(id uint, quantity int) error
	WithTx(tx *gorm.DB) *GormProductRepository
}

// GormProductRepository gorm implementation
type GormProductRepository struct {
	db *gorm.DB
}

// NewProductRepository builds the repository
func NewProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// WithTx binds a transaction
func (r *GormProductRepository) WithTx(tx *gorm.DB) *GormProductRepository {
	if tx == nil {
		return r
	}
	return &GormProductRepository{db: tx}
}

// GetByID returns nil when missing
func (r *GormProductRepository) GetByID(id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// GetBySlug returns nil when missing
func (r *GormProductRepository) GetBySlug(slug string, onlyActive bool) (*models.Product, error) {
	query := r.db.Where("slug = ?", strings.TrimSpace(slug))
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	var product models.Product
	if err := query.First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

// ListByIDs loads products for checkout pricing
func (r *GormProductRepository) ListByIDs(ids []uint) ([]models.Product, error) {
	products := make([]models.Product, 0, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// List catalog listing ordered by sort weight
func (r *GormProductRepository) List(filter ProductListFilter) ([]models.Product, int64, error) {
	query := r.db.Model(&models.Product{})
	if filter.OnlyActive {
		query = query.Where("is_active = ?", true)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		cond, n := buildLikeCondition(r.db, "name", "slug", "description")
		query = query.Where(cond, repeatLikeArgs("%"+search+"%", n)...)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	products := make([]models.Product, 0)
	if err := applyPagination(query.Order("sort_order DESC, id DESC"), filter.Page, filter.PageSize).Find(&products).Error; err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Create inserts a product
func (r *GormProductRepository) Create(product *models.Product) error {
	// the column default swallows an explicit false on insert and is written back into the struct
	active := product.IsActive
	if err := r.db.Create(product).Error; err != nil {
		return err
	}
	if !active {
		product.IsActive = false
		return r.db.Model(product).Update("is_active", false).Error
	}
	return nil
}

// Update saves a product
func (r *GormProductRepository) Update(product *models.Product) error {
	return r.db.Save(product).Error
}

// Delete soft deletes a product
func (r *GormProductRepository) Delete(id uint) error {
	return r.db.Delete(&models.Product{}, id).Error
}

// DecrementStock reserves tracked stock; untracked products are left alone.
// Returns 0 rows when tracked stock is insufficient, sold out included.
func (r *GormProductRepository) DecrementStock(id uint, quantity int) (int64, error) {
	if quantity <= 0 {
		return 0, nil
	}
	var product models.Product
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "stock", "track_stock").First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if !product.TrackStock {
		return 1, nil
	}
	result := r.db.Model(&models.Product{}).
		Where("id = ? AND track_stock = ? AND stock >= ?", id, true, quantity).
		UpdateColumn("stock", gorm.Expr("stock - ?", quantity))
	return result.RowsAffected, result.Error
}

// IncrementStock returns reserved units to a tracked product
func (r *GormProductRepository) IncrementStock(id uint, quantity int) error {
	if quantity <= 0 {
		return nil
	}
	return r.db.Unscoped().Model(&models.Product{}).
		Where("id = ? AND track_stock = ?", id, true).
		UpdateColumn("stock", gorm.Expr("stock + ?", quantity)).Error
}
