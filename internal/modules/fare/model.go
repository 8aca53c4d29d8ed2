// README: Fare rule keys, vehicle classes, and quote breakdown shapes.
package fare

import (
	"time"

	"fleetbid/internal/types"
)

type VehicleClass string

const (
	ClassSaloon    VehicleClass = "saloon"
	ClassEstate    VehicleClass = "estate"
	ClassMPV       VehicleClass = "mpv"
	ClassExecutive VehicleClass = "executive"
	ClassMinibus   VehicleClass = "minibus"

	// ClassDefault is the system-wide fallback key in the rate store.
	ClassDefault VehicleClass = "default"
)

type ServiceType string

const (
	ServiceStandard       ServiceType = "standard"
	ServiceAirportPickup  ServiceType = "airport_pickup"
	ServiceAirportDropoff ServiceType = "airport_dropoff"
)

func (t ServiceType) IsAirport() bool {
	return t == ServiceAirportPickup || t == ServiceAirportDropoff
}

// RuleType keys the rate store. Monetary rules are pence values, *_bps rules
// are basis points (1/100th of a percent), so fractional percentages like
// 12.5% stay exact as 1250.
type RuleType string

const (
	RuleBaseFare            RuleType = "base_fare"
	RulePerMileRate         RuleType = "per_mile_rate"
	RuleTierReduction       RuleType = "tier_reduction"
	RuleNightSurchargeBps   RuleType = "night_surcharge_bps"
	RulePeakSurchargeBps    RuleType = "peak_surcharge_bps"
	RuleHolidaySurchargeBps RuleType = "holiday_surcharge_bps"
	RuleMeetGreetFee        RuleType = "meet_greet_fee"
	RuleAirportFee          RuleType = "airport_fee"
	RuleChildSeatFee        RuleType = "child_seat_fee"
	RuleBoosterSeatFee      RuleType = "booster_seat_fee"
	RulePickDropFee         RuleType = "pick_drop_fee"
	RuleReturnDiscountBps   RuleType = "return_discount_bps"
	RuleMinBidBps           RuleType = "min_bid_bps"
)

type Extras struct {
	MeetAndGreet bool
	ChildSeats   int
	BoosterSeats int
	PickAndDrop  bool
}

// LegRequest prices a single journey leg.
type LegRequest struct {
	Vehicle   VehicleClass
	Service   ServiceType
	Pickup    types.Point
	Dropoff   types.Point
	Waypoints []types.Point
	PickupAt  time.Time
	Extras    Extras
}

// Breakdown is the line-itemized quote for one leg. Every value is rounded
// to whole pence at the point it is computed.
type Breakdown struct {
	Miles   float64
	Minutes float64

	BaseFare         types.Money
	DistanceCharge   types.Money
	TimeSurcharge    types.Money
	HolidaySurcharge types.Money
	MeetGreetFee     types.Money
	AirportFee       types.Money
	ChildSeatFee     types.Money
	BoosterSeatFee   types.Money
	PickDropFee      types.Money

	Subtotal types.Money
}

// ReturnBreakdown prices an outbound/return pair. The discount applies once,
// to the combined subtotal, not per leg.
type ReturnBreakdown struct {
	Outbound Breakdown
	Return   Breakdown
	Discount types.Money
	Total    types.Money
}
