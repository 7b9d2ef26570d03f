package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/internal/products"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
	"github.com/davidruizdev/storefront-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes review submission and listing.
type Service interface {
	Upsert(ctx context.Context, input UpsertInput) (*models.Review, error)
	GetMine(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// UpsertInput carries a review submission. A repeat submission by the same
// user for the same product overwrites the previous one.
type UpsertInput struct {
	UserID      uuid.UUID
	ProductID   uuid.UUID
	Rating      int
	Title       string
	Description string
}

// ListResult is one page of reviews.
type ListResult struct {
	Reviews []models.Review `json:"reviews"`
	Page    pagination.Page `json:"pagination"`
}

type service struct {
	repo     *GormRepository
	products *products.Repository
	tx       txRunner
}

// NewService builds a review service.
func NewService(repo *GormRepository, productsRepo *products.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("review repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, products: productsRepo, tx: tx}, nil
}

// Upsert stores the review and recomputes the product's rating aggregate in
// the same transaction.
func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Review, error) {
	if err := validateUpsert(&input); err != nil {
		return nil, err
	}

	if _, err := s.products.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	verified, err := s.repo.HasPaidPurchase(ctx, input.UserID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase")
	}

	review := &models.Review{
		ID:                 uuid.New(),
		UserID:             input.UserID,
		ProductID:          input.ProductID,
		Rating:             input.Rating,
		Title:              input.Title,
		Description:        input.Description,
		IsVerifiedPurchase: verified,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		if err := txRepo.Upsert(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert review")
		}

		stats, err := txRepo.Stats(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute rating")
		}
		if err := s.products.WithTx(tx).UpdateRating(ctx, input.ProductID, stats.Average.Round(2), stats.Count); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product rating")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save review")
	}

	stored, err := s.repo.FindByUserAndProduct(ctx, input.UserID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload review")
	}
	return stored, nil
}

// GetMine returns the requester's review of the product.
func (s *service) GetMine(ctx context.Context, userID, productID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByUserAndProduct(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}

// ListByProduct pages through a product's reviews.
func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*ListResult, error) {
	rows, total, err := s.repo.ListByProduct(ctx, productID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	return &ListResult{Reviews: rows, Page: pagination.NewPage(params.Normalize(), total)}, nil
}

func validateUpsert(input *UpsertInput) error {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)

	switch {
	case input.UserID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	case input.ProductID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	case input.Rating < 1 || input.Rating > 5:
		return pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	case input.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case input.Description == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	return nil
}
