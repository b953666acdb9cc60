package ntpserver

import (
	"net"

	geoip2 "github.com/oschwald/geoip2-golang"
)

// CountryResolver maps a client IP to an ISO 3166 country code,
// or "" when unknown.
type CountryResolver interface {
	Country(ip net.IP) string
}

// GeoIP resolves countries from a MaxMind GeoIP2/GeoLite2 database.
type GeoIP struct {
	db *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIP, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &GeoIP{db: db}, nil
}

func (g *GeoIP) Country(ip net.IP) string {
	if g == nil || ip == nil {
		return ""
	}
	rec, err := g.db.Country(ip)
	if err != nil {
		return ""
	}
	return rec.Country.IsoCode
}

func (g *GeoIP) Close() error {
	return g.db.Close()
}
