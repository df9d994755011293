package repository

import (
	"context"
	"fmt"

	"github.com/xenking/spinzone-api/internal/domain/product"
	"github.com/xenking/spinzone-api/internal/store"
)

const (
	productRelation = "product"

	colProductID = "product_id"
	colName      = "name"
	colPrice     = "price"
	colStock     = "stock"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository over a store.Store.
type ProductRepository struct {
	s store.Store
}

// NewProductRepository returns a ProductRepository that uses s.
func NewProductRepository(s store.Store) *ProductRepository {
	return &ProductRepository{s: s}
}

// GetByID returns a single product. It returns product.ErrNotFound when no
// product has the id.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.s.Find(ctx, productRelation, store.Eq(colProductID, id))
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, product.ErrNotFound
	}
	p, err := mapProduct(rows[0])
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return p, nil
}

// SetStock overwrites the stock of a product.
func (r *ProductRepository) SetStock(ctx context.Context, id, stock int64) error {
	rows, err := r.s.Update(ctx, productRelation,
		[]store.Filter{store.Eq(colProductID, id)},
		store.Row{colStock: stock},
	)
	if err != nil {
		return fmt.Errorf("setting stock of product %d: %w", id, err)
	}
	if len(rows) == 0 {
		return product.ErrNotFound
	}
	return nil
}

// Create stores products, used by the seed tooling.
func (r *ProductRepository) Create(ctx context.Context, ps ...product.Product) error {
	rows := make([]store.Row, len(ps))
	for i, p := range ps {
		rows[i] = store.Row{
			colProductID: p.ID,
			colName:      p.Name,
			colPrice:     p.Price,
			colStock:     p.Stock,
		}
	}
	if _, err := r.s.Insert(ctx, productRelation, rows); err != nil {
		return fmt.Errorf("creating products: %w", err)
	}
	return nil
}

func mapProduct(row store.Row) (*product.Product, error) {
	id, err := row.Int64(colProductID)
	if err != nil {
		return nil, err
	}
	price, err := row.Decimal(colPrice)
	if err != nil {
		return nil, err
	}
	var stock int64
	if row[colStock] != nil {
		if stock, err = row.Int64(colStock); err != nil {
			return nil, err
		}
	}
	return &product.Product{
		ID:    id,
		Name:  row.String(colName),
		Price: price,
		Stock: stock,
	}, nil
}
