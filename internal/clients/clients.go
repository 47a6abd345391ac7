package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/example/goods-transport/internal/models"
)

// UserDirectory resolves user ids to identity-service profiles.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

// RideInventory resolves ride ids to their assigned carriers.
type RideInventory interface {
	GetRide(ctx context.Context, id string) (models.Ride, error)
}

// HTTPUserClient talks to the identity service.
type HTTPUserClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPUserClient(baseURL string) *HTTPUserClient {
	return &HTTPUserClient{BaseURL: baseURL, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (c *HTTPUserClient) GetUser(ctx context.Context, id string) (models.User, error) {
	var u models.User
	if err := getJSON(ctx, c.Client, fmt.Sprintf("%s/api/v1/users/%s", c.BaseURL, id), &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// HTTPRideClient talks to the ride inventory service.
type HTTPRideClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPRideClient(baseURL string) *HTTPRideClient {
	return &HTTPRideClient{BaseURL: baseURL, Client: &http.Client{Timeout: 3 * time.Second}}
}

func (c *HTTPRideClient) GetRide(ctx context.Context, id string) (models.Ride, error) {
	var r models.Ride
	if err := getJSON(ctx, c.Client, fmt.Sprintf("%s/api/v1/rides/%s", c.BaseURL, id), &r); err != nil {
		return models.Ride{}, err
	}
	return r, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
