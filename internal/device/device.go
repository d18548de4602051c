package device

import "github.com/mileusna/useragent"

const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeOther   = "other"
)

// Info is the parsed user-agent classification.
type Info struct {
	Browser    string
	OS         string
	DeviceType string
}

// Parse classifies a raw User-Agent header value. A missing or
// unparseable value keeps Browser and OS empty; DeviceType stays
// "desktop" unless a mobile, tablet or bot signal is detected.
func Parse(raw string) Info {
	info := Info{DeviceType: TypeDesktop}
	if raw == "" {
		return info
	}

	ua := useragent.Parse(raw)
	info.Browser = ua.Name
	info.OS = ua.OS
	switch {
	case ua.Mobile:
		info.DeviceType = TypeMobile
	case ua.Tablet:
		info.DeviceType = TypeTablet
	case ua.Bot:
		info.DeviceType = TypeOther
	}
	return info
}
