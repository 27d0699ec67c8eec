package checkin

// CheckIn is one logged daily record: what actually happened, as opposed
// to the plan targets for that date. Numeric fields are nullable because
// a day can be partially logged.
type CheckIn struct {
	LogDate      string   `json:"log_date"`
	SleepHours   *float64 `json:"sleep_hours"`
	SleepQuality *int     `json:"sleep_quality"`
	Steps        *int     `json:"steps"`
	WeightKg     *float64 `json:"weight_kg"`
	WaistCm      *float64 `json:"waist_cm"`
	HipCm        *float64 `json:"hip_cm"`
	AlcoholUnits int      `json:"alcohol_units"`
	CreatineYN   *string  `json:"creatine_yn"`
	PhotoURL     string   `json:"photo_url"`
}

// WHR returns waist_cm / hip_cm, or nil when either measurement is
// missing or hip is not positive. Always derived, never stored.
func (c *CheckIn) WHR() *float64 {
	if c.WaistCm == nil || c.HipCm == nil || *c.HipCm <= 0 {
		return nil
	}
	whr := *c.WaistCm / *c.HipCm
	return &whr
}
