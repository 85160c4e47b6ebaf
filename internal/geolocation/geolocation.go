// Package geolocation resolves a client IP address to approximate coordinates.
package geolocation

import (
	"context"
	"errors"
	"net/netip"

	"github.com/rs/zerolog"
)

// Geolocation errors.
var (
	ErrLookupFailed = errors.New("ip geolocation lookup failed")
)

// Location is a resolved position.
type Location struct {
	Lat  float64
	Lon  float64
	City string

	// Fallback is set when the position is the configured default rather than
	// a lookup result.
	Fallback bool
}

// Locator resolves an IP address to a location.
type Locator interface {
	Locate(ctx context.Context, ip string) (Location, error)
}

// ServiceConfig holds configuration for the geolocation service.
type ServiceConfig struct {
	Locator  Locator
	Fallback Location
	Logger   zerolog.Logger
}

// Service wraps a Locator and never fails: lookup errors yield the fallback.
type Service struct {
	locator  Locator
	fallback Location
	logger   zerolog.Logger
}

// NewService creates a geolocation service.
func NewService(cfg ServiceConfig) *Service {
	fallback := cfg.Fallback
	fallback.Fallback = true

	return &Service{
		locator:  cfg.Locator,
		fallback: fallback,
		logger:   cfg.Logger,
	}
}

// Locate returns the location for ip, or the fallback location.
func (s *Service) Locate(ctx context.Context, ip string) Location {
	if s.locator == nil {
		return s.fallback
	}

	loc, err := s.locator.Locate(ctx, ip)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("ip", ip).
			Msg("ip geolocation failed, using fallback location")
		return s.fallback
	}
	return loc
}

// Fallback returns the configured fallback location.
func (s *Service) Fallback() Location {
	return s.fallback
}

// isPublic reports whether ip is a routable public address.
func isPublic(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	return !(addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsMulticast())
}
