package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CostEventKind represents the variants of itemized trip cost events
type CostEventKind string

// Predefined CostEventKind values
const (
	CostEventFastTag        CostEventKind = "fastTag"
	CostEventMcd            CostEventKind = "mcd"
	CostEventGreenTax       CostEventKind = "greenTax"
	CostEventRepair         CostEventKind = "repair"
	CostEventRto            CostEventKind = "rto"
	CostEventDto            CostEventKind = "dto"
	CostEventMunicipalities CostEventKind = "municipalities"
	CostEventBorder         CostEventKind = "border"
)

// ValidCostEventKinds returns all valid CostEventKind values
func ValidCostEventKinds() []CostEventKind {
	return []CostEventKind{
		CostEventFastTag,
		CostEventMcd,
		CostEventGreenTax,
		CostEventRepair,
		CostEventRto,
		CostEventDto,
		CostEventMunicipalities,
		CostEventBorder,
	}
}

// IsValid checks if the CostEventKind value is one of the predefined constants
func (k CostEventKind) IsValid() bool {
	for _, validKind := range ValidCostEventKinds() {
		if k == validKind {
			return true
		}
	}
	return false
}

// Collection is the mongo collection holding events of this kind
func (k CostEventKind) Collection() string {
	return string(k) + "Events"
}

// CostEvent holds the structure shared by every cost event collection in mongo
type CostEvent struct {
	ID         primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	TripID     primitive.ObjectID `json:"tripID" bson:"tripId"`
	OwnerID    string             `json:"ownerID" bson:"ownerId"`
	Amount     float64            `json:"amount" bson:"amount"`
	State      string             `json:"state,omitempty" bson:"state,omitempty"`
	Checkpoint string             `json:"checkpoint,omitempty" bson:"checkpoint,omitempty"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	EventTime  time.Time          `json:"eventTime" bson:"eventTime"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// Counts reports whether the event contributes to the trip total
func (e CostEvent) Counts() bool {
	return e.Amount > 0
}
