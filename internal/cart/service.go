package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/davidruizdev/storefront-backend/internal/pricing"
	"github.com/davidruizdev/storefront-backend/pkg/db/models"
	pkgerrors "github.com/davidruizdev/storefront-backend/pkg/errors"
)

// Owner identifies whose cart an operation targets. Authenticated users
// resolve by user ID; guests resolve by the session cart token.
type Owner struct {
	UserID        *uuid.UUID
	SessionCartID string
}

// Service exposes cart mutation and read operations.
type Service interface {
	Get(ctx context.Context, owner Owner) (*models.Cart, error)
	AddItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error)
	RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error)
}

type service struct {
	repo     Repository
	products productLoader
	tx       txRunner
	calc     *pricing.Calculator
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, products productLoader, tx txRunner, calc *pricing.Calculator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if calc == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	return &service{repo: repo, products: products, tx: tx, calc: calc}, nil
}

// Get returns the owner's cart, or an empty unsaved cart when none exists yet.
func (s *service) Get(ctx context.Context, owner Owner) (*models.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	cart, err := s.resolve(ctx, s.repo, owner)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		empty := &models.Cart{SessionCartID: owner.SessionCartID, Items: []models.CartItem{}}
		if owner.UserID != nil {
			empty.UserID = owner.UserID
		}
		return empty, nil
	}
	return cart, nil
}

// AddItem puts one unit of the product into the cart; a repeated product
// bumps the existing line's quantity instead of adding a second line.
func (s *service) AddItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.resolve(ctx, txRepo, owner)
		if err != nil {
			return err
		}

		if cart == nil {
			if product.Stock < 1 {
				return outOfStock(product)
			}
			created, err := s.createCartWithItem(ctx, txRepo, owner, product)
			if err != nil {
				return err
			}
			cartID = created.ID
			return nil
		}

		// serialize concurrent mutations of the same cart
		if _, err := txRepo.FindByIDForUpdate(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		cartID = cart.ID

		items, err := txRepo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}

		qty := 1
		for _, existing := range items {
			if existing.ProductID == product.ID {
				qty = existing.Qty + 1
				break
			}
		}
		if product.Stock < qty {
			return outOfStock(product)
		}

		line := newLine(cart.ID, product, qty)
		if err := txRepo.UpsertItem(ctx, line); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
		}

		return s.reprice(ctx, txRepo, cart)
	})
	if err != nil {
		return nil, asServiceError(err, "add cart item")
	}

	return s.reload(ctx, cartID)
}

// RemoveItem takes one unit of the product out of the cart; the last unit
// removes the line entirely.
func (s *service) RemoveItem(ctx context.Context, owner Owner, productID uuid.UUID) (*models.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}

	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var cartID uuid.UUID
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := s.resolve(ctx, txRepo, owner)
		if err != nil {
			return err
		}
		if cart == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}

		if _, err := txRepo.FindByIDForUpdate(ctx, cart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		cartID = cart.ID

		items, err := txRepo.ListItems(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
		}

		var existing *models.CartItem
		for i := range items {
			if items[i].ProductID == product.ID {
				existing = &items[i]
				break
			}
		}
		if existing == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not in cart")
		}

		if existing.Qty <= 1 {
			if err := txRepo.DeleteItem(ctx, cart.ID, product.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
			}
		} else {
			line := newLine(cart.ID, product, existing.Qty-1)
			if err := txRepo.UpsertItem(ctx, line); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert cart item")
			}
		}

		return s.reprice(ctx, txRepo, cart)
	})
	if err != nil {
		return nil, asServiceError(err, "remove cart item")
	}

	return s.reload(ctx, cartID)
}

func (s *service) resolve(ctx context.Context, repo Repository, owner Owner) (*models.Cart, error) {
	if owner.UserID == nil {
		cart, err := repo.FindBySession(ctx, owner.SessionCartID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		return cart, nil
	}

	cart, err := repo.FindByUser(ctx, *owner.UserID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if owner.SessionCartID == "" {
		return nil, nil
	}

	// A signed-in user with no cart of their own picks up the cart they
	// built before signing in. Claiming rotates the session token so a
	// later guest on the same browser starts fresh.
	cart, err = repo.FindBySession(ctx, owner.SessionCartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart.UserID != nil {
		return nil, nil
	}
	if err := repo.Claim(ctx, cart.ID, *owner.UserID, uuid.NewString()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim cart")
	}
	cart.UserID = owner.UserID
	return cart, nil
}

func (s *service) loadProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) createCartWithItem(ctx context.Context, repo Repository, owner Owner, product *models.Product) (*models.Cart, error) {
	line := newLine(uuid.Nil, product, 1)
	breakdown := s.calc.Calculate([]models.CartItem{*line})

	cart := &models.Cart{
		UserID:        owner.UserID,
		SessionCartID: owner.SessionCartID,
		ItemsPrice:    breakdown.ItemsPrice,
		ShippingPrice: breakdown.ShippingPrice,
		TaxPrice:      breakdown.TaxPrice,
		TotalPrice:    breakdown.TotalPrice,
		Items:         []models.CartItem{*line},
	}
	created, err := repo.Create(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

// reprice recomputes the derived breakdown from the lines currently persisted
// inside the transaction, so the stored totals always match the items.
func (s *service) reprice(ctx context.Context, repo Repository, cart *models.Cart) error {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	breakdown := s.calc.Calculate(items)
	cart.ItemsPrice = breakdown.ItemsPrice
	cart.ShippingPrice = breakdown.ShippingPrice
	cart.TaxPrice = breakdown.TaxPrice
	cart.TotalPrice = breakdown.TotalPrice
	if err := repo.UpdatePrices(ctx, cart); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart prices")
	}
	return nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return cart, nil
}

func newLine(cartID uuid.UUID, product *models.Product, qty int) *models.CartItem {
	image := ""
	if len(product.Images) > 0 {
		image = product.Images[0]
	}
	return &models.CartItem{
		CartID:    cartID,
		ProductID: product.ID,
		Name:      product.Name,
		Slug:      product.Slug,
		Image:     image,
		Price:     product.Price,
		Qty:       qty,
	}
}

func outOfStock(product *models.Product) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, "not enough stock").
		WithDetails(map[string]any{
			"product_id": product.ID.String(),
			"stock":      product.Stock,
		})
}

func validateOwner(owner Owner) error {
	if strings.TrimSpace(owner.SessionCartID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart session id is required")
	}
	return nil
}

func asServiceError(err error, msg string) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
