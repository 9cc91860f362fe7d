package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"privloc/internal/domain/location"
)

// NominatimGeocoder resolves coordinates against a Nominatim-compatible
// reverse-geocoding endpoint. Any failure degrades to an empty result; the
// location pipeline never stalls on geocoding.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewNominatimGeocoder creates a geocoder against the given base URL.
func NewNominatimGeocoder(baseURL, userAgent string, timeout time.Duration) *NominatimGeocoder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

// nominatimResponse is the subset of the reverse endpoint we read.
type nominatimResponse struct {
	Address struct {
		City     string `json:"city"`
		Town     string `json:"town"`
		Village  string `json:"village"`
		State    string `json:"state"`
		Country  string `json:"country"`
		Postcode string `json:"postcode"`
	} `json:"address"`
}

// ReverseGeocode resolves coordinates to place names.
func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, coords location.Coordinates) (location.GeocodeResult, error) {
	endpoint := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%s&lon=%s&zoom=10",
		g.baseURL,
		url.QueryEscape(fmt.Sprintf("%.4f", coords.Latitude)),
		url.QueryEscape(fmt.Sprintf("%.4f", coords.Longitude)),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return location.GeocodeResult{}, fmt.Errorf("building geocode request: %w", err)
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return location.GeocodeResult{}, fmt.Errorf("reverse geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return location.GeocodeResult{}, fmt.Errorf("reverse geocode status %d", resp.StatusCode)
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return location.GeocodeResult{}, fmt.Errorf("decoding geocode response: %w", err)
	}

	city := body.Address.City
	if city == "" {
		city = body.Address.Town
	}
	if city == "" {
		city = body.Address.Village
	}

	return location.GeocodeResult{
		City:       city,
		Region:     body.Address.State,
		Country:    body.Address.Country,
		PostalCode: body.Address.Postcode,
	}, nil
}

// StaticGeocoder returns a fixed result for every lookup. Used in development
// and tests where no geocoding endpoint is available.
type StaticGeocoder struct {
	Result location.GeocodeResult
}

// ReverseGeocode returns the configured result.
func (g *StaticGeocoder) ReverseGeocode(ctx context.Context, coords location.Coordinates) (location.GeocodeResult, error) {
	return g.Result, nil
}
