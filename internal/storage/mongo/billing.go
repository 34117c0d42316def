package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/starlighttrader/storefront/internal/domain/billing"
)

var _ billing.Repository = (*BillingRepository)(nil)

// billingDocument is the stored shape: billing fields at the top level next
// to the order id and payment state.
type billingDocument struct {
	OrderID    string                `bson:"orderID"`
	FirstName  string                `bson:"firstName"`
	LastName   string                `bson:"lastName"`
	Email      string                `bson:"emailID"`
	Phone      string                `bson:"phoneNumber"`
	Address    string                `bson:"address"`
	City       string                `bson:"city"`
	State      string                `bson:"state"`
	Country    string                `bson:"country"`
	PostalCode string                `bson:"pinCode"`
	Item       string                `bson:"item,omitempty"`
	Amount     *primitive.Decimal128 `bson:"amount,omitempty"`
	Currency   string                `bson:"currency,omitempty"`
	Status     string                `bson:"PaymentStatus"`
	Mode       string                `bson:"PaymentMode"`
	Timestamp  time.Time             `bson:"timestamp"`
}

func newBillingDocument(r billing.Record) (billingDocument, error) {
	d := r.Details
	doc := billingDocument{
		OrderID:    r.OrderID,
		FirstName:  d.FirstName,
		LastName:   d.LastName,
		Email:      d.Email,
		Phone:      d.Phone,
		Address:    d.Address,
		City:       d.City,
		State:      d.State,
		Country:    d.Country,
		PostalCode: d.PostalCode,
		Item:       d.Item,
		Currency:   d.Currency,
		Status:     r.Status,
		Mode:       r.Mode,
		Timestamp:  r.CreatedAt,
	}
	if !d.Amount.IsZero() {
		amount, err := primitive.ParseDecimal128(d.Amount.String())
		if err != nil {
			return billingDocument{}, fmt.Errorf("converting amount %s: %w", d.Amount, err)
		}
		doc.Amount = &amount
	}
	return doc, nil
}

// BillingRepository implements billing.Repository backed by a collection.
type BillingRepository struct {
	coll *mongo.Collection
}

// NewBillingRepository returns a BillingRepository writing to the billing
// collection of database.
func NewBillingRepository(client *mongo.Client, database string) *BillingRepository {
	if database == "" {
		database = DefaultDatabase
	}
	return &BillingRepository{coll: client.Database(database).Collection(BillingCollection)}
}

// Insert stores r as a new document.
func (r *BillingRepository) Insert(ctx context.Context, rec billing.Record) error {
	doc, err := newBillingDocument(rec)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("inserting billing details %q: %w", rec.OrderID, err)
	}
	return nil
}
