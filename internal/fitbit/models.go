package fitbit

import "encoding/json"

// Response shapes of the Fitbit Web API. Only fields we read are declared.

// timeSeriesEntry is one day of an activity time series. Fitbit encodes
// the value as a string.
type timeSeriesEntry struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

// activityTimeSeries covers /1/user/-/activities/{resource}/date/{start}/{end}.json
// The top-level key depends on the resource, e.g. "activities-steps".
type activityTimeSeries map[string][]timeSeriesEntry

type heartRateZone struct {
	Name        string  `json:"name"`
	Min         int     `json:"min"`
	Max         int     `json:"max"`
	Minutes     int     `json:"minutes"`
	CaloriesOut float64 `json:"caloriesOut"`
}

// HeartRateResponse is /1/user/-/activities/heart/date/{start}/{end}.json
type HeartRateResponse struct {
	ActivitiesHeart []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			RestingHeartRate *int            `json:"restingHeartRate"`
			HeartRateZones   []heartRateZone `json:"heartRateZones"`
		} `json:"value"`
	} `json:"activities-heart"`
}

type sleepLevelSummary struct {
	Minutes int `json:"minutes"`
}

// SleepLog is one sleep record. Main sleep and naps share a dateOfSleep.
type SleepLog struct {
	DateOfSleep   string `json:"dateOfSleep"`
	MinutesAsleep int    `json:"minutesAsleep"`
	MinutesAwake  int    `json:"minutesAwake"`
	TimeInBed     int    `json:"timeInBed"`
	Efficiency    int    `json:"efficiency"`
	IsMainSleep   bool   `json:"isMainSleep"`
	Type          string `json:"type"` // "stages" or "classic"
	Levels        struct {
		Summary struct {
			Deep  *sleepLevelSummary `json:"deep"`
			Light *sleepLevelSummary `json:"light"`
			REM   *sleepLevelSummary `json:"rem"`
			Wake  *sleepLevelSummary `json:"wake"`
		} `json:"summary"`
	} `json:"levels"`
}

// SleepResponse is /1.2/user/-/sleep/date/{start}/{end}.json
type SleepResponse struct {
	Sleep []SleepLog `json:"sleep"`
}

// spo2Entry is one night of /1/user/-/spo2/date/{start}/{end}.json.
// The range endpoint returns a bare array.
type spo2Entry struct {
	DateTime string `json:"dateTime"`
	Value    struct {
		Avg float64 `json:"avg"`
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"value"`
}

// WeightResponse is /1/user/-/body/weight/date/{start}/{end}.json
type WeightResponse struct {
	BodyWeight []timeSeriesEntry `json:"body-weight"`
}

// AZMResponse is /1/user/-/activities/active-zone-minutes/date/{start}/{end}.json
type AZMResponse struct {
	Entries []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			ActiveZoneMinutes        int `json:"activeZoneMinutes"`
			FatBurnActiveZoneMinutes int `json:"fatBurnActiveZoneMinutes"`
			CardioActiveZoneMinutes  int `json:"cardioActiveZoneMinutes"`
			PeakActiveZoneMinutes    int `json:"peakActiveZoneMinutes"`
		} `json:"value"`
	} `json:"activities-active-zone-minutes"`
}

// decodeSpO2 accepts both the range form (array) and the single-day form (object)
func decodeSpO2(body []byte) ([]spo2Entry, error) {
	var entries []spo2Entry
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}
	var single spo2Entry
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	if single.DateTime == "" {
		return nil, nil
	}
	return []spo2Entry{single}, nil
}
