// README: Fare service; pure quote computation over the distance oracle and rate store.
package fare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fleetbid/internal/config"
	"fleetbid/internal/types"
)

var (
	ErrDistanceUnavailable = errors.New("distance oracle unavailable")
	ErrRateNotConfigured   = errors.New("fare rate not configured")
	ErrBadRequest          = errors.New("bad quote request")
)

// DistanceOracle resolves route distance/duration. Implemented by
// maps.DistanceService in production.
type DistanceOracle interface {
	Route(ctx context.Context, pickup, dropoff types.Point, waypoints []types.Point) (miles, minutes float64, err error)
}

// RateResolver performs the two-tier rate lookup: specific vehicle class
// first, then the system-wide default key.
type RateResolver interface {
	Rate(ctx context.Context, rule RuleType, vehicle VehicleClass) (int64, error)
}

type Service struct {
	oracle DistanceOracle
	rates  RateResolver
	cal    config.FareCalendar
}

func NewService(oracle DistanceOracle, rates RateResolver, cal config.FareCalendar) *Service {
	return &Service{oracle: oracle, rates: rates, cal: cal}
}

// Quote prices a single leg. An oracle failure aborts the quote; there is no
// fallback price.
func (s *Service) Quote(ctx context.Context, req LegRequest) (Breakdown, error) {
	if req.Vehicle == "" || req.PickupAt.IsZero() {
		return Breakdown{}, ErrBadRequest
	}

	miles, minutes, err := s.oracle.Route(ctx, req.Pickup, req.Dropoff, req.Waypoints)
	if err != nil {
		return Breakdown{}, fmt.Errorf("%w: %v", ErrDistanceUnavailable, err)
	}

	var b Breakdown
	b.Miles = miles
	b.Minutes = minutes

	base, err := s.rates.Rate(ctx, RuleBaseFare, req.Vehicle)
	if err != nil {
		return Breakdown{}, err
	}
	b.BaseFare = types.Pence(base)

	b.DistanceCharge, err = s.distanceCharge(ctx, req.Vehicle, miles)
	if err != nil {
		return Breakdown{}, err
	}

	// Time and holiday surcharges compound against the already-rounded
	// base + distance amount.
	core := b.BaseFare.Add(b.DistanceCharge)

	b.TimeSurcharge, err = s.timeSurcharge(ctx, req.Vehicle, req.PickupAt, core)
	if err != nil {
		return Breakdown{}, err
	}
	b.HolidaySurcharge, err = s.holidaySurcharge(ctx, req.Vehicle, req.PickupAt, core)
	if err != nil {
		return Breakdown{}, err
	}

	if err := s.applyExtras(ctx, req, &b); err != nil {
		return Breakdown{}, err
	}

	b.Subtotal = b.BaseFare.
		Add(b.DistanceCharge).
		Add(b.TimeSurcharge).
		Add(b.HolidaySurcharge).
		Add(b.MeetGreetFee).
		Add(b.AirportFee).
		Add(b.ChildSeatFee).
		Add(b.BoosterSeatFee).
		Add(b.PickDropFee)
	return b, nil
}

// QuoteReturn prices both legs independently and applies the return discount
// once to the combined subtotal.
func (s *Service) QuoteReturn(ctx context.Context, outbound, inbound LegRequest) (ReturnBreakdown, error) {
	out, err := s.Quote(ctx, outbound)
	if err != nil {
		return ReturnBreakdown{}, err
	}
	ret, err := s.Quote(ctx, inbound)
	if err != nil {
		return ReturnBreakdown{}, err
	}

	bps, err := s.rates.Rate(ctx, RuleReturnDiscountBps, outbound.Vehicle)
	if err != nil {
		return ReturnBreakdown{}, err
	}
	combined := out.Subtotal.Add(ret.Subtotal)
	discount := combined.Bps(bps)
	return ReturnBreakdown{
		Outbound: out,
		Return:   ret,
		Discount: discount,
		Total:    combined.Sub(discount),
	}, nil
}

// distanceCharge computes the tiered charge bracket by bracket: the per-mile
// rate drops by the tier reduction for every additional 100-mile bracket,
// floored at 1p/mile. A zero reduction disables tiering.
func (s *Service) distanceCharge(ctx context.Context, vehicle VehicleClass, miles float64) (types.Money, error) {
	perMile, err := s.rates.Rate(ctx, RulePerMileRate, vehicle)
	if err != nil {
		return types.Money{}, err
	}
	reduction, err := s.rates.Rate(ctx, RuleTierReduction, vehicle)
	if err != nil {
		return types.Money{}, err
	}

	const bracketMiles = 100.0
	total := types.Pence(0)
	rate := perMile
	remaining := miles
	for remaining > 0 {
		span := math.Min(remaining, bracketMiles)
		total = total.Add(types.FromPounds(span * float64(rate) / 100.0))
		remaining -= span
		rate -= reduction
		if rate < 1 {
			rate = 1
		}
	}
	return total, nil
}

func (s *Service) timeSurcharge(ctx context.Context, vehicle VehicleClass, at time.Time, core types.Money) (types.Money, error) {
	if s.inNightWindow(at) {
		bps, err := s.rates.Rate(ctx, RuleNightSurchargeBps, vehicle)
		if err != nil {
			return types.Money{}, err
		}
		return core.Bps(bps), nil
	}
	if s.inPeakBand(at) {
		bps, err := s.rates.Rate(ctx, RulePeakSurchargeBps, vehicle)
		if err != nil {
			return types.Money{}, err
		}
		return core.Bps(bps), nil
	}
	return types.Pence(0), nil
}

func (s *Service) holidaySurcharge(ctx context.Context, vehicle VehicleClass, at time.Time, core types.Money) (types.Money, error) {
	if !s.isHoliday(at) {
		return types.Pence(0), nil
	}
	bps, err := s.rates.Rate(ctx, RuleHolidaySurchargeBps, vehicle)
	if err != nil {
		return types.Money{}, err
	}
	return core.Bps(bps), nil
}

func (s *Service) applyExtras(ctx context.Context, req LegRequest, b *Breakdown) error {
	b.MeetGreetFee = types.Pence(0)
	b.AirportFee = types.Pence(0)
	b.ChildSeatFee = types.Pence(0)
	b.BoosterSeatFee = types.Pence(0)
	b.PickDropFee = types.Pence(0)

	if req.Extras.MeetAndGreet {
		fee, err := s.rates.Rate(ctx, RuleMeetGreetFee, req.Vehicle)
		if err != nil {
			return err
		}
		b.MeetGreetFee = types.Pence(fee)
	}
	if req.Service.IsAirport() {
		fee, err := s.rates.Rate(ctx, RuleAirportFee, req.Vehicle)
		if err != nil {
			return err
		}
		b.AirportFee = types.Pence(fee)
	}
	if n := req.Extras.ChildSeats; n > 0 {
		fee, err := s.rates.Rate(ctx, RuleChildSeatFee, req.Vehicle)
		if err != nil {
			return err
		}
		b.ChildSeatFee = types.Pence(fee * int64(n))
	}
	if n := req.Extras.BoosterSeats; n > 0 {
		fee, err := s.rates.Rate(ctx, RuleBoosterSeatFee, req.Vehicle)
		if err != nil {
			return err
		}
		b.BoosterSeatFee = types.Pence(fee * int64(n))
	}
	if req.Extras.PickAndDrop {
		fee, err := s.rates.Rate(ctx, RulePickDropFee, req.Vehicle)
		if err != nil {
			return err
		}
		b.PickDropFee = types.Pence(fee)
	}
	return nil
}

// inNightWindow handles windows wrapping past midnight (e.g. 22 → 6).
func (s *Service) inNightWindow(at time.Time) bool {
	h := at.Hour()
	start, end := s.cal.NightStartHour, s.cal.NightEndHour
	if start == end {
		return false
	}
	if start < end {
		return h >= start && h < end
	}
	return h >= start || h < end
}

func (s *Service) inPeakBand(at time.Time) bool {
	h := at.Hour()
	wd := at.Weekday()
	for _, band := range s.cal.PeakBands {
		if band.StartHour == band.EndHour {
			continue
		}
		if band.WeekdaysOnly && (wd == time.Saturday || wd == time.Sunday) {
			continue
		}
		if h >= band.StartHour && h < band.EndHour {
			return true
		}
	}
	return false
}

// isHoliday is year-agnostic: the configured Christmas month-day range plus
// New Year's Eve and New Year's Day.
func (s *Service) isHoliday(at time.Time) bool {
	if at.Month() == time.December && at.Day() == 31 {
		return true
	}
	if at.Month() == time.January && at.Day() == 1 {
		return true
	}
	cur := monthDayOrdinal(at.Month(), at.Day())
	from := monthDayOrdinal(s.cal.ChristmasFrom.Month, s.cal.ChristmasFrom.Day)
	to := monthDayOrdinal(s.cal.ChristmasTo.Month, s.cal.ChristmasTo.Day)
	if from <= to {
		return cur >= from && cur <= to
	}
	// Range wraps the year boundary.
	return cur >= from || cur <= to
}

func monthDayOrdinal(m time.Month, d int) int {
	return int(m)*100 + d
}
