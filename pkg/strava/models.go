package strava

import (
	"encoding/json"
	"time"
)

// Athlete is the athlete profile returned by GET /athlete.
type Athlete struct {
	ID            int64   `json:"id"`
	Username      string  `json:"username,omitempty"`
	ResourceState int     `json:"resource_state,omitempty"`
	Firstname     string  `json:"firstname,omitempty"`
	Lastname      string  `json:"lastname,omitempty"`
	Bio           string  `json:"bio,omitempty"`
	City          string  `json:"city,omitempty"`
	State         string  `json:"state,omitempty"`
	Country       string  `json:"country,omitempty"`
	Sex           string  `json:"sex,omitempty"`
	Premium       bool    `json:"premium"`
	Summit        bool    `json:"summit"`
	CreatedAt     string  `json:"created_at,omitempty"`
	UpdatedAt     string  `json:"updated_at,omitempty"`
	BadgeTypeID   int     `json:"badge_type_id,omitempty"`
	Weight        float64 `json:"weight,omitempty"`
	ProfileMedium string  `json:"profile_medium,omitempty"`
	Profile       string  `json:"profile,omitempty"`
}

func (a *Athlete) Validate() error {
	if a.ID == 0 {
		return &ValidationError{Entity: "athlete", Field: "id", Reason: "missing"}
	}
	return nil
}

// ActivityTotals is one rolled-up total block inside athlete stats.
type ActivityTotals struct {
	Count            int     `json:"count"`
	Distance         float64 `json:"distance"`
	MovingTime       float64 `json:"moving_time"`
	ElapsedTime      float64 `json:"elapsed_time"`
	ElevationGain    float64 `json:"elevation_gain"`
	AchievementCount int     `json:"achievement_count,omitempty"`
}

// AthleteStats is the aggregate snapshot from GET /athletes/{id}/stats.
// AthleteID and FetchedAt are stamped by the client before loading since the
// API response carries neither.
type AthleteStats struct {
	AthleteID int64     `json:"athlete_id"`
	FetchedAt time.Time `json:"fetched_at"`

	BiggestRideDistance       float64 `json:"biggest_ride_distance"`
	BiggestClimbElevationGain float64 `json:"biggest_climb_elevation_gain"`

	RecentRideTotals ActivityTotals `json:"recent_ride_totals"`
	RecentRunTotals  ActivityTotals `json:"recent_run_totals"`
	RecentSwimTotals ActivityTotals `json:"recent_swim_totals"`

	AllRideTotals ActivityTotals `json:"all_ride_totals"`
	AllRunTotals  ActivityTotals `json:"all_run_totals"`
	AllSwimTotals ActivityTotals `json:"all_swim_totals"`

	YTDRideTotals ActivityTotals `json:"ytd_ride_totals"`
	YTDRunTotals  ActivityTotals `json:"ytd_run_totals"`
	YTDSwimTotals ActivityTotals `json:"ytd_swim_totals"`
}

func (s *AthleteStats) Validate() error {
	if s.AthleteID == 0 {
		return &ValidationError{Entity: "athlete_stats", Field: "athlete_id", Reason: "missing"}
	}
	return nil
}

// ActivityAthlete is the meta reference embedded in an activity.
type ActivityAthlete struct {
	ID            int64 `json:"id,omitempty"`
	ResourceState int   `json:"resource_state,omitempty"`
}

// ActivityMap is the polyline summary embedded in an activity.
type ActivityMap struct {
	ID              string `json:"id,omitempty"`
	SummaryPolyline string `json:"summary_polyline,omitempty"`
	ResourceState   int    `json:"resource_state,omitempty"`
}

// Activity is one exercise session from GET /athlete/activities.
// Unknown fields in the payload are ignored; Strava adds new ones often.
type Activity struct {
	ID                 int64   `json:"id"`
	ResourceState      int     `json:"resource_state,omitempty"`
	Name               string  `json:"name,omitempty"`
	Distance           float64 `json:"distance,omitempty"`
	MovingTime         int64   `json:"moving_time,omitempty"`
	ElapsedTime        int64   `json:"elapsed_time,omitempty"`
	TotalElevationGain float64 `json:"total_elevation_gain,omitempty"`
	Type               string  `json:"type,omitempty"` // deprecated upstream, prefer SportType
	SportType          string  `json:"sport_type,omitempty"`
	WorkoutType        float64 `json:"workout_type,omitempty"`

	StartDate      string  `json:"start_date,omitempty"`
	StartDateLocal string  `json:"start_date_local,omitempty"`
	Timezone       string  `json:"timezone,omitempty"`
	UTCOffset      float64 `json:"utc_offset,omitempty"`

	LocationCity    string `json:"location_city,omitempty"`
	LocationState   string `json:"location_state,omitempty"`
	LocationCountry string `json:"location_country,omitempty"`

	AchievementCount int `json:"achievement_count,omitempty"`
	KudosCount       int `json:"kudos_count,omitempty"`
	CommentCount     int `json:"comment_count,omitempty"`
	AthleteCount     int `json:"athlete_count,omitempty"`
	PhotoCount       int `json:"photo_count,omitempty"`

	Trainer         bool   `json:"trainer,omitempty"`
	Commute         bool   `json:"commute,omitempty"`
	Manual          bool   `json:"manual,omitempty"`
	Private         bool   `json:"private,omitempty"`
	Flagged         bool   `json:"flagged,omitempty"`
	HasKudoed       bool   `json:"has_kudoed,omitempty"`
	FromAcceptedTag bool   `json:"from_accepted_tag,omitempty"`
	Visibility      string `json:"visibility,omitempty"`

	GearID      string    `json:"gear_id,omitempty"`
	StartLatLng []float64 `json:"start_latlng,omitempty"`
	EndLatLng   []float64 `json:"end_latlng,omitempty"`

	Athlete *ActivityAthlete `json:"athlete,omitempty"`
	Map     *ActivityMap     `json:"map,omitempty"`

	AverageSpeed               float64 `json:"average_speed,omitempty"`
	MaxSpeed                   float64 `json:"max_speed,omitempty"`
	HasHeartrate               bool    `json:"has_heartrate,omitempty"`
	HeartrateOptOut            bool    `json:"heartrate_opt_out,omitempty"`
	DisplayHideHeartrateOption bool    `json:"display_hide_heartrate_option,omitempty"`
	AverageCadence             float64 `json:"average_cadence,omitempty"`
	AverageTemp                float64 `json:"average_temp,omitempty"`
	AverageWatts               float64 `json:"average_watts,omitempty"`
	MaxWatts                   float64 `json:"max_watts,omitempty"`
	WeightedAverageWatts       float64 `json:"weighted_average_watts,omitempty"`
	DeviceWatts                bool    `json:"device_watts,omitempty"`
	Kilojoules                 float64 `json:"kilojoules,omitempty"`
	AverageHeartrate           float64 `json:"average_heartrate,omitempty"`
	MaxHeartrate               float64 `json:"max_heartrate,omitempty"`
	ElevHigh                   float64 `json:"elev_high,omitempty"`
	ElevLow                    float64 `json:"elev_low,omitempty"`

	UploadID        int64  `json:"upload_id,omitempty"`
	UploadIDStr     string `json:"upload_id_str,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	PRCount         int    `json:"pr_count,omitempty"`
	TotalPhotoCount int    `json:"total_photo_count,omitempty"`
}

func (a *Activity) Validate() error {
	if a.ID == 0 {
		return &ValidationError{Entity: "activity", Field: "id", Reason: "missing"}
	}
	return nil
}

// ParseActivity maps one raw listing item onto a typed Activity. Failures
// come back as ValidationError so the caller can drop the record and keep
// going with the rest of the page.
func ParseActivity(raw json.RawMessage) (Activity, error) {
	var a Activity
	if err := json.Unmarshal(raw, &a); err != nil {
		return Activity{}, &ValidationError{Entity: "activity", Reason: err.Error()}
	}
	if err := a.Validate(); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// Gear is a piece of equipment from GET /gear/{id}.
type Gear struct {
	ID                   string  `json:"id"`
	Primary              bool    `json:"primary,omitempty"`
	Name                 string  `json:"name,omitempty"`
	Nickname             string  `json:"nickname,omitempty"`
	ResourceState        int     `json:"resource_state,omitempty"`
	Retired              bool    `json:"retired,omitempty"`
	Distance             int64   `json:"distance,omitempty"`
	ConvertedDistance    float64 `json:"converted_distance,omitempty"`
	BrandName            string  `json:"brand_name,omitempty"`
	ModelName            string  `json:"model_name,omitempty"`
	FrameType            float64 `json:"frame_type,omitempty"`
	Description          string  `json:"description,omitempty"`
	Weight               float64 `json:"weight,omitempty"`
	NotificationDistance float64 `json:"notification_distance,omitempty"`
}

func (g *Gear) Validate() error {
	if g.ID == "" {
		return &ValidationError{Entity: "gear", Field: "id", Reason: "missing"}
	}
	return nil
}

// Stream is one named time series inside an activity's stream payload.
// Data values keep their raw JSON encoding; classification into typed value
// slots happens when the streams are exploded into rows.
type Stream struct {
	Data         []json.RawMessage `json:"data"`
	OriginalSize int               `json:"original_size,omitempty"`
	Resolution   string            `json:"resolution,omitempty"`
}
