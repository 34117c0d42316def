package mongo

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/starlighttrader/storefront/internal/domain/pricing"
)

// ErrNoDiscounts is returned when the discount collection is empty.
var ErrNoDiscounts = errors.New("no discount codes found")

// DiscountSource reads the discount-code document.
type DiscountSource struct {
	coll *mongo.Collection
}

// NewDiscountSource returns a DiscountSource for the discount collection of
// database.
func NewDiscountSource(client *mongo.Client, database string) *DiscountSource {
	if database == "" {
		database = DefaultDatabase
	}
	return &DiscountSource{coll: client.Database(database).Collection(DiscountsCollection)}
}

// Load returns the first discount document as a table.
func (s *DiscountSource) Load(ctx context.Context) (pricing.DiscountTable, error) {
	raw, err := s.coll.FindOne(ctx, bson.D{}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoDiscounts
		}
		return nil, fmt.Errorf("finding discount codes: %w", err)
	}
	return decodeDiscounts(raw)
}

// decodeDiscounts converts a discount document into a table, dropping _id.
func decodeDiscounts(raw bson.Raw) (pricing.DiscountTable, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, fmt.Errorf("reading discount document: %w", err)
	}

	table := pricing.DiscountTable{}
	for _, el := range elems {
		item := el.Key()
		if item == "_id" {
			continue
		}
		doc, ok := el.Value().DocumentOK()
		if !ok {
			return nil, fmt.Errorf("discounts for %q: not a document", item)
		}
		var byCurrency map[string][]map[string]string
		if err := bson.Unmarshal(doc, &byCurrency); err != nil {
			return nil, fmt.Errorf("discounts for %q: %w", item, err)
		}
		table[item] = byCurrency
	}
	return table, nil
}
