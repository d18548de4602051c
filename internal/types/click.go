package types

import "time"

// ClickEvent is one append-only analytics row per successful
// resolution. Country and City fall back to "Unknown"; Browser and OS
// stay empty when the user agent cannot be parsed.
type ClickEvent struct {
	LinkID     int64     `json:"link_id" db:"link_id"`
	Country    string    `json:"country" db:"country"`
	City       string    `json:"city" db:"city"`
	Browser    string    `json:"browser_name" db:"browser_name"`
	OS         string    `json:"os_name" db:"os_name"`
	DeviceType string    `json:"device_type" db:"device_type"`
	ClickedAt  time.Time `json:"clicked_at" db:"clicked_at"`
}
