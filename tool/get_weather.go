package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/habiliai/supportagent/errors"
)

type (
	GetWeatherArgs struct {
		City string `json:"city" jsonschema:"required,description=City to get the current weather for"`
	}

	// GeoResponse is the response structure for OpenWeatherMap Geocoding API
	GeoResponse struct {
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		Name    string  `json:"name"`
		Country string  `json:"country"`
	}

	// CurrentWeatherResponse is the response structure for OpenWeatherMap `/data/2.5/weather`
	CurrentWeatherResponse struct {
		Weather []struct {
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			Humidity  float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	}

	// APIErrorResponse is the JSON structure returned when API calls fail
	APIErrorResponse struct {
		Code    any    `json:"cod"`
		Message string `json:"message"`
	}

	WeatherClient struct {
		apiKey     string
		baseURL    string
		httpClient *http.Client
		logger     *slog.Logger
	}
)

const (
	GetWeatherToolName = "get_weather"

	openWeatherBaseURL = "https://api.openweathermap.org"
)

func NewWeatherClient(apiKey string, httpClient *http.Client, logger *slog.Logger) *WeatherClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WeatherClient{
		apiKey:     apiKey,
		baseURL:    openWeatherBaseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// WithBaseURL points the client at another OpenWeatherMap compatible host.
func (c *WeatherClient) WithBaseURL(baseURL string) *WeatherClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *WeatherClient) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("appid", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode()), nil)
	if err != nil {
		return errors.WithStack(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.WithStack(err)
	}
	defer resp.Body.Close()

	// Handle API error responses
	if resp.StatusCode != http.StatusOK {
		var apiErr APIErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return errors.Errorf("API call failed: HTTP %d", resp.StatusCode)
		}
		return errors.Errorf("API call failed: HTTP %d, message: %s", resp.StatusCode, apiErr.Message)
	}

	return errors.WithStack(json.NewDecoder(resp.Body).Decode(out))
}

// getCoordinates converts city name to latitude/longitude coordinates
func (c *WeatherClient) getCoordinates(ctx context.Context, city string) (*GeoResponse, error) {
	params := url.Values{}
	params.Set("q", city)
	params.Set("limit", "1")

	var geoData []GeoResponse
	if err := c.get(ctx, "/geo/1.0/direct", params, &geoData); err != nil {
		return nil, errors.Wrapf(err, "geocoding API call failed")
	}
	if len(geoData) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "city not found: %s", city)
	}

	return &geoData[0], nil
}

func (c *WeatherClient) Current(ctx context.Context, city string) (string, error) {
	c.logger.DebugContext(ctx, "get_weather", "city", city)

	geo, err := c.getCoordinates(ctx, city)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", geo.Lat))
	params.Set("lon", fmt.Sprintf("%f", geo.Lon))
	params.Set("units", "metric")
	params.Set("lang", "en")

	var weather CurrentWeatherResponse
	if err := c.get(ctx, "/data/2.5/weather", params, &weather); err != nil {
		return "", errors.Wrapf(err, "error occurred while fetching weather information")
	}

	description := "no description"
	if len(weather.Weather) > 0 {
		description = weather.Weather[0].Description
	}
	place := geo.Name
	if geo.Country != "" {
		place += ", " + geo.Country
	}

	return fmt.Sprintf(
		"Current weather in %s: %s, %.1f°C (feels like %.1f°C), humidity %.0f%%, wind %.1f m/s",
		place, description, weather.Main.Temp, weather.Main.FeelsLike, weather.Main.Humidity, weather.Wind.Speed,
	), nil
}

func NewGetWeatherTool(client *WeatherClient) Tool {
	return New(GetWeatherToolName, `Get the current weather for a city, e.g. to advise on delivery or store visits.

Input: {"city": "Seoul"} or the plain city name.`, GetWeatherArgs{}, func(ctx context.Context, input string) (string, error) {
		var a GetWeatherArgs
		if err := parseArgsOrText(input, "city").decode(&a); err != nil {
			return "", err
		}
		city := strings.TrimSpace(a.City)
		if city == "" {
			return "ERROR: Missing required field 'city'. Please provide: {\"city\": \"city name\"}", nil
		}
		return client.Current(ctx, city)
	})
}
