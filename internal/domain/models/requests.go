package models

// Requests for monitor HTTP endpoints. Defined in domain for consistency and reuse.

type MasterRequest struct {
	Index   string `query:"index" json:"index" validate:"required"`
	Expiry  string `query:"expiry" json:"expiry" default:"this_week" validate:"oneof=this_week next_week this_month next_month"`
	Offset  string `query:"offset" json:"offset" default:"atm" validate:"oneof=atm atm_m1 atm_m2 atm_p1 atm_p2 atm_p1m1 atm_p2m2 m1 m2 p1 p2"`
	Weekday string `query:"weekday" json:"weekday" validate:"required,oneof=mon tue wed thu fri sat sun"`
}

// Key resolves the request into a store key, normalizing legacy offsets.
func (r MasterRequest) Key() AggregationKey {
	return AggregationKey{
		Index:        r.Index,
		ExpiryBucket: r.Expiry,
		StrikeOffset: NormalizeOffset(r.Offset),
		Weekday:      r.Weekday,
	}
}
