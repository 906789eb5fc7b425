package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type IPAPI struct {
	BaseURL string
	Client  *http.Client
}

func NewIPAPI(baseURL string) *IPAPI {
	return &IPAPI{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{}}
}

type ipapiResponse struct {
	Status  string `json:"status"`
	City    string `json:"city"`
	Country string `json:"country"`
}

func (a *IPAPI) Lookup(ctx context.Context, ip string) (string, error) {
	u := fmt.Sprintf("%s/%s?fields=city,country,status", a.BaseURL, url.PathEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	res, err := a.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geo: request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: unexpected status %d", res.StatusCode)
	}

	var body ipapiResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("geo: decode failed: %w", err)
	}
	if body.Status != "success" {
		return UnknownLocation, nil
	}

	loc := strings.Trim(strings.TrimSpace(body.City+", "+body.Country), ", ")
	if loc == "" {
		return UnknownLocation, nil
	}
	return loc, nil
}
