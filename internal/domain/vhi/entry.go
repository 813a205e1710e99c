package vhi

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format for observation dates (dd-mm-yyyy).
const DateLayout = "02-01-2006"

const (
	VegetationForest    = "Forest"
	VegetationGrassland = "Grassland"
	VegetationCrop      = "Crop"
	VegetationOther     = "Other"
)

// Date is a calendar date that marshals as dd-mm-yyyy.
type Date time.Time

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)

	if err != nil {
		return Date{}, err
	}

	return Date(t), nil
}

func (d Date) String() string {
	return time.Time(d).Format(DateLayout)
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string

	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	parsed, err := ParseDate(s)

	if err != nil {
		return err
	}

	*d = parsed

	return nil
}

type Entry struct {
	ID             int64  `json:"id"`
	Author         int64  `json:"author"`
	Location       string `json:"location"`
	VhiValue       int    `json:"vhi_value"`
	Date           Date   `json:"date"`
	VegetationType string `json:"vegetation_type"`
}
