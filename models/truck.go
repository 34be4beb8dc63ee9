package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Truck holds the structure for the trucks collection in mongo
type Truck struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	OwnerID   string             `json:"ownerID" bson:"ownerId"`
	Name      string             `json:"name" bson:"name"`
	Plate     string             `json:"plate" bson:"plate"`
	Model     string             `json:"model" bson:"model"`
	CreatedAt time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// TruckPatch holds the optional fields of a truck update
type TruckPatch struct {
	Name  *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Plate *string `json:"plate,omitempty" validate:"omitempty,min=1"`
	Model *string `json:"model,omitempty"`
}

// NormalizePlate removes spaces and dashes and upper-cases the plate
func NormalizePlate(value string) string {
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "-", "")
	return strings.ToUpper(value)
}
