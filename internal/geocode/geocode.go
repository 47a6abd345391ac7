package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/goods-transport/internal/models"
)

// Geocoder resolves free-text addresses to coordinates. Callers treat
// failure as non-fatal and fall back to zero coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (models.Coord, error)
}

// NominatimClient performs forward geocoding against an OSM Nominatim server.
type NominatimClient struct {
	Endpoint string
	Client   *http.Client
}

func NewNominatimClient(endpoint string) *NominatimClient {
	return &NominatimClient{Endpoint: endpoint, Client: &http.Client{Timeout: 3 * time.Second}}
}

// Resolve queries /search?q=<address>&format=json&limit=1 and returns the
// first hit's coordinates.
func (n *NominatimClient) Resolve(ctx context.Context, address string) (models.Coord, error) {
	u := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", n.Endpoint, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.Coord{}, err
	}
	req.Header.Set("User-Agent", "goods-transport/1.0")
	resp, err := n.Client.Do(req)
	if err != nil {
		return models.Coord{}, err
	}
	defer resp.Body.Close()
	var out []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coord{}, err
	}
	if len(out) == 0 {
		return models.Coord{}, fmt.Errorf("geocode no result for %q", address)
	}
	lat, err := strconv.ParseFloat(out[0].Lat, 64)
	if err != nil {
		return models.Coord{}, err
	}
	lon, err := strconv.ParseFloat(out[0].Lon, 64)
	if err != nil {
		return models.Coord{}, err
	}
	return models.Coord{Lat: lat, Lon: lon}, nil
}
