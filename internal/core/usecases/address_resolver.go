package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lukagarbi/doorstep/internal/core/ports"
	"github.com/lukagarbi/doorstep/internal/pkg/metrics"
)

// AddressResolver turns a building coordinate into a human-readable
// address. Every failure mode degrades to a coordinate placeholder; the
// resolver never blocks building assembly.
type AddressResolver struct {
	geocoder ports.ReverseGeocoder
	cache    ports.CacheService
	cacheTTL int
}

// NewAddressResolver creates an AddressResolver. cache may be nil;
// cacheTTLSeconds only matters when it is not.
func NewAddressResolver(geocoder ports.ReverseGeocoder, cache ports.CacheService, cacheTTLSeconds int) *AddressResolver {
	if cacheTTLSeconds <= 0 {
		cacheTTLSeconds = 86400
	}
	return &AddressResolver{geocoder: geocoder, cache: cache, cacheTTL: cacheTTLSeconds}
}

// Resolve returns the address for a coordinate plus the leading street
// number when the address starts with one. The warning is non-empty only
// when no geocoding key is configured; remote failures fall back to the
// placeholder silently.
func (r *AddressResolver) Resolve(ctx context.Context, lat, lon float64) (string, *int, string) {
	if r.geocoder == nil || !r.geocoder.Configured() {
		return placeholderAddress(lat, lon), nil, WarnNoGeocodingKey
	}

	cacheKey := fmt.Sprintf("geocode:%.6f,%.6f", lat, lon)
	if r.cache != nil {
		if data, err := r.cache.Get(ctx, cacheKey); err == nil {
			var address string
			if err := json.Unmarshal(data, &address); err == nil && address != "" {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return address, leadingNumber(address), ""
			}
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	address, err := r.geocoder.ReverseGeocode(ctx, lat, lon)
	if err != nil || address == "" {
		return placeholderAddress(lat, lon), nil, ""
	}

	if r.cache != nil {
		if data, err := json.Marshal(address); err == nil {
			_ = r.cache.Set(ctx, cacheKey, data, r.cacheTTL)
		}
	}

	return address, leadingNumber(address), ""
}

func placeholderAddress(lat, lon float64) string {
	return fmt.Sprintf("Building at %.6f, %.6f", lat, lon)
}

// leadingNumber extracts the street number when the address starts with
// digits ("12 Gran Via, Bilbao" yields 12).
func leadingNumber(address string) *int {
	i := 0
	for i < len(address) && address[i] >= '0' && address[i] <= '9' {
		i++
	}
	if i == 0 {
		return nil
	}
	n, err := strconv.Atoi(address[:i])
	if err != nil {
		return nil
	}
	return &n
}
