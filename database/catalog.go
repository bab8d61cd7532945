package database

import (
	"context"
	"strings"

	"bastaku-campaign-api/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

const variantColumns = `
	v.id, v.product_id, p.name, v.brand, v.size, v.weight, v.price,
	v.campaign_discount_percentage, v.minimum_order_quantity_for_offer, v.stock`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVariant(row rowScanner) (*models.Variant, error) {
	var v models.Variant
	err := row.Scan(
		&v.ID,
		&v.ProductID,
		&v.ProductName,
		&v.Brand,
		&v.Size,
		&v.Weight,
		&v.Price,
		&v.CampaignDiscountPercentage,
		&v.MinimumOrderQuantityForOffer,
		&v.Stock,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// buildProductQuery returns the listing statement and its arguments.
func buildProductQuery(filter models.ProductFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "(p.name LIKE ? OR p.description LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "p.category = ?")
		args = append(args, c)
	}
	if filter.InCampaign != nil {
		where = append(where, "p.is_in_campaign = ?")
		args = append(args, *filter.InCampaign)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultPageSize
	} else if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT p.id, p.name, p.description, p.image, p.category, p.is_in_campaign FROM products p`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)
	return query, args
}

func (c *Connection) ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query, args := buildProductQuery(filter)
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "failed to list products")
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Category, &p.IsInCampaign); err != nil {
			return nil, translate(err, "failed to scan product")
		}
		products = append(products, p)
	}
	return products, translate(rows.Err(), "failed to iterate products")
}

// GetProduct loads a product with all of its variants.
func (c *Connection) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var p models.Product
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, description, image, category, is_in_campaign
		FROM products
		WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.Description, &p.Image, &p.Category, &p.IsInCampaign)
	if err != nil {
		return nil, translate(err, "failed to get product")
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT`+variantColumns+`
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.product_id = ?
		ORDER BY v.id ASC`, id)
	if err != nil {
		return nil, translate(err, "failed to list variants")
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, translate(err, "failed to scan variant")
		}
		p.Variants = append(p.Variants, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "failed to iterate variants")
	}
	return &p, nil
}

func (c *Connection) GetVariant(ctx context.Context, id int64) (*models.Variant, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := c.db.QueryRowContext(ctx, `
		SELECT`+variantColumns+`
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ?`, id)
	v, err := scanVariant(row)
	if err != nil {
		return nil, translate(err, "failed to get variant")
	}
	return v, nil
}

// GetVariants loads the given variants keyed by id. Unknown ids are absent
// from the result.
func (c *Connection) GetVariants(ctx context.Context, ids []int64) (map[int64]models.Variant, error) {
	result := make(map[int64]models.Variant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT`+variantColumns+`
		FROM variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, translate(err, "failed to get variants")
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, translate(err, "failed to scan variant")
		}
		result[v.ID] = *v
	}
	return result, translate(rows.Err(), "failed to iterate variants")
}
