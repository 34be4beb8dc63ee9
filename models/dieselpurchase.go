package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DieselPurchase holds the structure for the dieselPurchases collection in mongo
type DieselPurchase struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	TripID       primitive.ObjectID `json:"tripID" bson:"tripId"`
	OwnerID      string             `json:"ownerID" bson:"ownerId"`
	State        string             `json:"state" bson:"state"`
	City         string             `json:"city" bson:"city"`
	Quantity     float64            `json:"quantity" bson:"quantity"`
	UnitPrice    float64            `json:"unitPrice" bson:"unitPrice"`
	PurchaseDate time.Time          `json:"purchaseDate" bson:"purchaseDate"`
	// Cost is round(quantity × unitPrice, 2), kept for display
	Cost      float64   `json:"cost" bson:"cost"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
