package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// Location is best-effort visitor geography. Empty fields mean the
// source could not determine them; defaulting to "Unknown" is the
// caller's concern.
type Location struct {
	Country string
	City    string
}

// Locator resolves a client IP to a Location. It consults a local
// GeoLite2 City database first when one is configured, then falls back
// to a single bounded HTTP lookup. Lookups are never retried.
type Locator struct {
	db     *geoip2.Reader
	apiURL string
	client *http.Client
}

// NewLocator opens the optional MMDB at mmdbPath (skipped when empty)
// and prepares the HTTP fallback against apiURL (an ipapi.co-style
// endpoint, skipped when empty).
func NewLocator(mmdbPath, apiURL string, timeout time.Duration) (*Locator, error) {
	l := &Locator{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
	if mmdbPath != "" {
		db, err := geoip2.Open(mmdbPath)
		if err != nil {
			return nil, err
		}
		l.db = db
	}
	return l, nil
}

func (l *Locator) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Locate answers with whatever geography can be determined for ip.
// Failures are logged and swallowed; the zero Location is a valid
// answer.
func (l *Locator) Locate(ctx context.Context, ip string) Location {
	var loc Location

	if parsed := net.ParseIP(ip); parsed != nil && l.db != nil {
		record, err := l.db.City(parsed)
		if err == nil {
			if name, ok := record.Country.Names["en"]; ok {
				loc.Country = name
			}
			if name, ok := record.City.Names["en"]; ok {
				loc.City = name
			}
		}
	}
	if loc.Country != "" && loc.City != "" {
		return loc
	}
	if l.apiURL == "" {
		return loc
	}

	remote, err := l.lookup(ctx, ip)
	if err != nil {
		slog.Warn("geo lookup failed", "ip", ip, "error", err)
		return loc
	}
	if loc.Country == "" {
		loc.Country = remote.Country
	}
	if loc.City == "" {
		loc.City = remote.City
	}
	return loc
}

func (l *Locator) lookup(ctx context.Context, ip string) (Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s/json/", l.apiURL, ip), nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geo api status %d", resp.StatusCode)
	}

	var body struct {
		CountryCode string `json:"country_code"`
		City        string `json:"city"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode geo response: %w", err)
	}
	return Location{Country: body.CountryCode, City: body.City}, nil
}
