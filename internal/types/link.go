package types

import "time"

// LinkRecord is one shortened-link mapping. Records are created and
// edited by the external management surface; the redirect core only
// reads them (the click counter is bumped through an atomic update,
// never through this struct). The store guarantees that at most one
// record claims a given ShortCode or Alias value.
type LinkRecord struct {
	ID          int64      `json:"id" db:"id"`
	ShortCode   string     `json:"short_code" db:"short_code"`
	Alias       string     `json:"custom_alias" db:"custom_alias"`
	Destination string     `json:"long_url" db:"long_url"`
	ExpiresAt   *time.Time `json:"expires_at" db:"expires_at"`
}
