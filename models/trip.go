package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Trip holds the structure for the trips collection in mongo.
//
// TotalCost is derived: it is only ever written by the ledger after a recompute.
// DieselPurchases and the embedded TripEvents are populated by lookups when a
// single trip is fetched and are never stored on the trip document itself.
type Trip struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	OwnerID     string             `json:"ownerID" bson:"ownerId"`
	TruckID     primitive.ObjectID `json:"truckID" bson:"truckId"`
	Source      string             `json:"source" bson:"source"`
	Destination string             `json:"destination" bson:"destination"`
	TripDate    time.Time          `json:"tripDate" bson:"tripDate"`

	DirectCosts `bson:",inline"`

	TotalCost float64   `json:"totalCost" bson:"totalCost"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`

	DieselPurchases []DieselPurchase `json:"dieselPurchases,omitempty" bson:"dieselPurchases,omitempty"`
	TripEvents      `bson:",inline"`
}

// DirectCosts are the scalar cost fields stored on the trip itself. Requests are
// bounded to a billion per field.
type DirectCosts struct {
	FastTagCost        float64 `json:"fastTagCost" bson:"fastTagCost" validate:"gte=-1000000000,lte=1000000000"`
	McdCost            float64 `json:"mcdCost" bson:"mcdCost" validate:"gte=-1000000000,lte=1000000000"`
	GreenTaxCost       float64 `json:"greenTaxCost" bson:"greenTaxCost" validate:"gte=-1000000000,lte=1000000000"`
	RtoCost            float64 `json:"rtoCost" bson:"rtoCost" validate:"gte=-1000000000,lte=1000000000"`
	DtoCost            float64 `json:"dtoCost" bson:"dtoCost" validate:"gte=-1000000000,lte=1000000000"`
	MunicipalitiesCost float64 `json:"municipalitiesCost" bson:"municipalitiesCost" validate:"gte=-1000000000,lte=1000000000"`
	BorderCost         float64 `json:"borderCost" bson:"borderCost" validate:"gte=-1000000000,lte=1000000000"`
	RepairCost         float64 `json:"repairCost" bson:"repairCost" validate:"gte=-1000000000,lte=1000000000"`
}

// TripEvents holds the itemized cost events of a trip, one slice per kind
type TripEvents struct {
	FastTagEvents        []CostEvent `json:"fastTagEvents,omitempty" bson:"fastTagEvents,omitempty"`
	McdEvents            []CostEvent `json:"mcdEvents,omitempty" bson:"mcdEvents,omitempty"`
	GreenTaxEvents       []CostEvent `json:"greenTaxEvents,omitempty" bson:"greenTaxEvents,omitempty"`
	RepairEvents         []CostEvent `json:"repairEvents,omitempty" bson:"repairEvents,omitempty"`
	RtoEvents            []CostEvent `json:"rtoEvents,omitempty" bson:"rtoEvents,omitempty"`
	DtoEvents            []CostEvent `json:"dtoEvents,omitempty" bson:"dtoEvents,omitempty"`
	MunicipalitiesEvents []CostEvent `json:"municipalitiesEvents,omitempty" bson:"municipalitiesEvents,omitempty"`
	BorderEvents         []CostEvent `json:"borderEvents,omitempty" bson:"borderEvents,omitempty"`
}

// Events returns the slot holding the events of the given kind
func (e *TripEvents) Events(kind CostEventKind) *[]CostEvent {
	switch kind {
	case CostEventFastTag:
		return &e.FastTagEvents
	case CostEventMcd:
		return &e.McdEvents
	case CostEventGreenTax:
		return &e.GreenTaxEvents
	case CostEventRepair:
		return &e.RepairEvents
	case CostEventRto:
		return &e.RtoEvents
	case CostEventDto:
		return &e.DtoEvents
	case CostEventMunicipalities:
		return &e.MunicipalitiesEvents
	case CostEventBorder:
		return &e.BorderEvents
	}
	return nil
}

// TripPatch holds the optional fields of a trip update. There is no total here:
// the ledger never trusts a caller supplied total.
type TripPatch struct {
	Source      *string    `json:"source,omitempty" validate:"omitempty,min=1"`
	Destination *string    `json:"destination,omitempty" validate:"omitempty,min=1"`
	TripDate    *time.Time `json:"tripDate,omitempty"`

	FastTagCost        *float64 `json:"fastTagCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	McdCost            *float64 `json:"mcdCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	GreenTaxCost       *float64 `json:"greenTaxCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	RtoCost            *float64 `json:"rtoCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	DtoCost            *float64 `json:"dtoCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	MunicipalitiesCost *float64 `json:"municipalitiesCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	BorderCost         *float64 `json:"borderCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
	RepairCost         *float64 `json:"repairCost,omitempty" validate:"omitempty,gte=-1000000000,lte=1000000000"`
}

// Apply merges the patch into the trip, new values overriding old ones
func (p TripPatch) Apply(t *Trip) {
	setString(&t.Source, p.Source)
	setString(&t.Destination, p.Destination)
	if p.TripDate != nil {
		t.TripDate = *p.TripDate
	}
	setFloat(&t.FastTagCost, p.FastTagCost)
	setFloat(&t.McdCost, p.McdCost)
	setFloat(&t.GreenTaxCost, p.GreenTaxCost)
	setFloat(&t.RtoCost, p.RtoCost)
	setFloat(&t.DtoCost, p.DtoCost)
	setFloat(&t.MunicipalitiesCost, p.MunicipalitiesCost)
	setFloat(&t.BorderCost, p.BorderCost)
	setFloat(&t.RepairCost, p.RepairCost)
}

// TripRef identifies a trip and its owner, used by the reconciliation sweep
type TripRef struct {
	ID      primitive.ObjectID `bson:"_id"`
	OwnerID string             `bson:"ownerId"`
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
