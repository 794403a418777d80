package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Price is a listing price. It is stored as a decimal string so no precision is lost.
type Price struct {
	decimal.Decimal
}

func NewPrice(s string) (Price, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}, fmt.Errorf("invalid price %q: %w", s, err)
	}
	return Price{d}, nil
}

func (p Price) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.String())
}

func (p *Price) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	var s string
	if err := (bson.RawValue{Type: t, Value: data}).Unmarshal(&s); err != nil {
		return err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	p.Decimal = d
	return nil
}

// PropertyData is the snapshot emitted by the listing source when a property page is ready.
type PropertyData struct {
	MLSID   string   `json:"mls_id" binding:"required"`
	Address string   `json:"address" binding:"required"`
	Price   Price    `json:"price"`
	Beds    int      `json:"beds"`
	Baths   float64  `json:"baths"`
	Images  []string `json:"images,omitempty"`
}

// SavedProperty is a buyer's favourite.
type SavedProperty struct {
	Base            `bson:",inline"`
	BuyerID         string    `bson:"buyer_id" json:"buyer_id"`
	MLSID           string    `bson:"mls_id" json:"mls_id"`
	PropertyAddress string    `bson:"property_address" json:"property_address"`
	Price           Price     `bson:"price" json:"price"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
}

// TourStatus is the state of a tour request.
type TourStatus string

const (
	TourRequested TourStatus = "requested"
	TourConfirmed TourStatus = "confirmed"
	TourCancelled TourStatus = "cancelled"
)

// TourRequest is a buyer's request to visit a property.
type TourRequest struct {
	Base            `bson:",inline"`
	BuyerID         string     `bson:"buyer_id" json:"buyer_id"`
	MLSID           string     `bson:"mls_id" json:"mls_id"`
	PropertyAddress string     `bson:"property_address" json:"property_address"`
	RequestedAt     time.Time  `bson:"requested_at" json:"requested_at"`
	PreferredTime   *time.Time `bson:"preferred_time,omitempty" json:"preferred_time,omitempty"`
	Status          TourStatus `bson:"status" json:"status"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
}
