package delivery

import (
	"errors"
	"fmt"
	"strings"
)

const (
	fallbackFee  = 300
	fallbackDays = 5
	remoteDays   = 5
)

var (
	ErrCountyRequired     = errors.New("county is required")
	ErrCourierRequired    = errors.New("courier is required")
	ErrUnknownCounty      = errors.New("unknown county")
	ErrUnknownSubCounty   = errors.New("unknown sub-county")
	ErrUnknownTown        = errors.New("unknown town")
	ErrUnknownCourier     = errors.New("unknown courier")
	ErrCourierUnavailable = errors.New("courier does not serve this location")
)

// band additive surcharge for a group of counties
type band struct {
	name     string
	fee      int
	days     int
	counties map[string]struct{}
}

func newBand(name string, fee, days int, counties ...string) band {
	b := band{name: name, fee: fee, days: days, counties: make(map[string]struct{}, len(counties))}
	for _, c := range counties {
		b.counties[normalizeName(c)] = struct{}{}
	}
	return b
}

func (b band) contains(key string) bool {
	_, ok := b.counties[key]
	return ok
}

// Evaluated in order, first match wins.
var bands = []band{
	newBand("home", 0, 0, "Nairobi"),
	newBand("adjacent", 50, 1, "Kiambu", "Machakos", "Kajiado", "Murang'a"),
	newBand("mid", 100, 2,
		"Nakuru", "Nyeri", "Kirinyaga", "Embu", "Meru", "Laikipia", "Nyandarua",
		"Makueni", "Kitui", "Narok", "Kericho", "Bomet", "Nyamira", "Kisii",
		"Kisumu", "Uasin Gishu", "Nandi", "Kakamega", "Vihiga", "Bungoma",
		"Trans Nzoia", "Elgeyo-Marakwet", "Baringo", "Tharaka-Nithi", "Homa Bay",
		"Migori", "Siaya", "Busia",
	),
	newBand("coastal", 200, 2, "Mombasa", "Kilifi", "Kwale", "Lamu", "Taita-Taveta", "Tana River"),
}

var otherBand = band{name: "other", fee: 150, days: 2}

var remoteCounties = newBand("remote", 0, remoteDays,
	"Turkana", "Marsabit", "Mandera", "Wajir", "Garissa", "Isiolo", "Samburu", "West Pokot",
)

func bandFor(county string) band {
	key := normalizeName(county)
	for _, b := range bands {
		if b.contains(key) {
			return b
		}
	}
	return otherBand
}

// Zone returns the surcharge band name for a county.
func Zone(county string) string {
	b := bandFor(county)
	if b.name == otherBand.name && remoteCounties.contains(normalizeName(county)) {
		return remoteCounties.name
	}
	return b.name
}

// ResolveDeliveryFee returns the fee in whole shillings. Unknown couriers fall back to 300.
func (d *Dataset) ResolveDeliveryFee(county, courierID string) int {
	c, ok := d.Courier(courierID)
	if !ok {
		return fallbackFee
	}
	return c.BaseFee + bandFor(county).fee
}

// ResolveEstimatedDays returns transit days. Unknown couriers fall back to 5.
func (d *Dataset) ResolveEstimatedDays(county, courierID string) int {
	c, ok := d.Courier(courierID)
	if !ok {
		return fallbackDays
	}
	b := bandFor(county)
	days := c.Days + b.days
	if b.name == otherBand.name && remoteCounties.contains(normalizeName(county)) {
		days += remoteCounties.days
	}
	return days
}

// ResolveDeliveryFee resolves against the embedded dataset.
func ResolveDeliveryFee(county, courierID string) int {
	return Default().ResolveDeliveryFee(county, courierID)
}

// ResolveEstimatedDays resolves against the embedded dataset.
func ResolveEstimatedDays(county, courierID string) int {
	return Default().ResolveEstimatedDays(county, courierID)
}

// FormatEstimatedDelivery renders a transit window such as "3-5 business days".
func FormatEstimatedDelivery(days int) string {
	if days <= 0 {
		return "Same day"
	}
	return fmt.Sprintf("%d-%d business days", days, days+2)
}

// QuoteInput delivery destination
type QuoteInput struct {
	County    string
	SubCounty string
	Town      string
	CourierID string
}

// Quote validated fee and transit estimate
type Quote struct {
	County            string  `json:"county"`
	SubCounty         string  `json:"sub_county,omitempty"`
	Town              string  `json:"town,omitempty"`
	Zone              string  `json:"zone"`
	Courier           Courier `json:"courier"`
	Fee               int     `json:"fee"`
	Days              int     `json:"days"`
	EstimatedDelivery string  `json:"estimated_delivery"`
}

// Quote validates the destination path and courier coverage, then prices it.
// Without a town the courier must serve at least one town in the county.
func (d *Dataset) Quote(in QuoteInput) (*Quote, error) {
	if strings.TrimSpace(in.County) == "" {
		return nil, ErrCountyRequired
	}
	if strings.TrimSpace(in.CourierID) == "" {
		return nil, ErrCourierRequired
	}
	countyIdx, ok := d.CountyIndex(in.County)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCounty, in.County)
	}
	courier, ok := d.Courier(in.CourierID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCourier, in.CourierID)
	}

	q := &Quote{County: d.nodes[countyIdx].Name, Courier: courier}
	available := d.countyCouriers(countyIdx)

	if strings.TrimSpace(in.SubCounty) != "" {
		subIdx, ok := d.childIndex(countyIdx, in.SubCounty)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSubCounty, in.SubCounty)
		}
		q.SubCounty = d.nodes[subIdx].Name
		if strings.TrimSpace(in.Town) != "" {
			townIdx, ok := d.childIndex(subIdx, in.Town)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownTown, in.Town)
			}
			q.Town = d.nodes[townIdx].Name
			available = d.nodes[townIdx].Couriers
		}
	} else if strings.TrimSpace(in.Town) != "" {
		return nil, fmt.Errorf("%w: sub-county required for town %s", ErrUnknownSubCounty, in.Town)
	}

	if !containsString(available, courier.ID) {
		return nil, fmt.Errorf("%w: %s", ErrCourierUnavailable, courier.ID)
	}

	q.Zone = Zone(q.County)
	q.Fee = d.ResolveDeliveryFee(q.County, courier.ID)
	q.Days = d.ResolveEstimatedDays(q.County, courier.ID)
	q.EstimatedDelivery = FormatEstimatedDelivery(q.Days)
	return q, nil
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
