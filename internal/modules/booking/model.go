// README: Booking aggregate; priced journey request with an immutable customer price.
package booking

import (
	"time"

	"fleetbid/internal/modules/fare"
	"fleetbid/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type Journey string

const (
	JourneyOneWay Journey = "one_way"
	JourneyReturn Journey = "return"
)

type Booking struct {
	ID              types.ID
	Vehicle         fare.VehicleClass
	Service         fare.ServiceType
	Journey         Journey
	Passengers      int
	Luggage         int
	Pickup          types.Point
	Dropoff         types.Point
	PickupPostcode  string
	DropoffPostcode string
	PickupAt        time.Time
	// CustomerPrice is fixed at quote time and never changes after payment.
	CustomerPrice types.Money
	Status        Status
	CreatedAt     time.Time
}

var allowedTransitions = map[Status][]Status{
	StatusPending:  {StatusPaid, StatusCancelled},
	StatusPaid:     {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
