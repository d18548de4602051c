package service

import (
	"context"
	"log/slog"
	"time"

	"redirector/internal/device"
	"redirector/internal/geo"
	"redirector/internal/types"
)

const unknownPlace = "Unknown"

// Visit is the by-value snapshot of one request, captured before the
// redirect response is written. The collector never touches the
// original *http.Request.
type Visit struct {
	LinkID    int64
	Country   string // edge-provided country header, may be empty
	City      string // edge-provided city header, may be empty
	IP        string // first X-Forwarded-For entry, trimmed
	UserAgent string
}

// ClickSink receives click events. Implementations must not block.
type ClickSink interface {
	PushClick(types.ClickEvent)
}

// GeoLocator fills in geography for an IP, best effort.
type GeoLocator interface {
	Locate(ctx context.Context, ip string) geo.Location
}

// Collector derives visitor attributes and persists one ClickEvent
// plus one counter increment per successful resolution. Every failure
// in here is logged and swallowed; nothing reaches the HTTP caller,
// which has already been answered.
type Collector struct {
	store   LinkStore
	sink    ClickSink
	locator GeoLocator
	timeout time.Duration
	now     func() time.Time
}

func NewCollector(store LinkStore, sink ClickSink, locator GeoLocator, timeout time.Duration) *Collector {
	return &Collector{
		store:   store,
		sink:    sink,
		locator: locator,
		timeout: timeout,
		now:     time.Now,
	}
}

// Collect runs the whole analytics stage for one visit. It is launched
// in its own goroutine and carries its own bounded context, never the
// request's; if the process is torn down mid-flight the work is lost,
// which is acceptable for this side channel.
func (c *Collector) Collect(visit Visit) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("analytics collector panic", "link_id", visit.LinkID, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	// The event insert and the counter increment are two independent
	// writes; neither is rolled back if the other fails.
	c.sink.PushClick(c.buildEvent(ctx, visit))

	if err := c.store.IncrementClicks(ctx, visit.LinkID); err != nil {
		slog.Error("failed to increment clicks", "link_id", visit.LinkID, "error", err)
	}
}

func (c *Collector) buildEvent(ctx context.Context, visit Visit) types.ClickEvent {
	country, city := visit.Country, visit.City
	if (country == "" || city == "") && visit.IP != "" && c.locator != nil {
		// Single fallback lookup; header-provided values are never
		// overwritten, only the missing fields are filled in.
		loc := c.locator.Locate(ctx, visit.IP)
		if country == "" {
			country = loc.Country
		}
		if city == "" {
			city = loc.City
		}
	}
	if country == "" {
		country = unknownPlace
	}
	if city == "" {
		city = unknownPlace
	}

	info := device.Parse(visit.UserAgent)

	return types.ClickEvent{
		LinkID:     visit.LinkID,
		Country:    country,
		City:       city,
		Browser:    info.Browser,
		OS:         info.OS,
		DeviceType: info.DeviceType,
		ClickedAt:  c.now().UTC(),
	}
}
