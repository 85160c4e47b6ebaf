package handler

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/api/response"
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/weather"
)

// WeatherHandler serves current conditions and daily forecasts.
type WeatherHandler struct {
	weather *weather.Service
	geo     *geolocation.Service
	logger  zerolog.Logger
}

// NewWeatherHandler creates a new WeatherHandler.
func NewWeatherHandler(weatherService *weather.Service, geo *geolocation.Service, logger zerolog.Logger) *WeatherHandler {
	return &WeatherHandler{
		weather: weatherService,
		geo:     geo,
		logger:  logger,
	}
}

// Current handles GET /v1/weather/current?city= or ?lat=&lon=.
func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := parseQuery(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid location parameters", fieldErrs)
		return
	}

	obs, err := h.weather.Current(r.Context(), q)
	if err != nil {
		h.writeError(w, r, q, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewCurrentWeather(obs))
}

// Here handles GET /v1/weather/here - current weather at the caller's IP location.
func (h *WeatherHandler) Here(w http.ResponseWriter, r *http.Request) {
	loc := h.geo.Locate(r.Context(), ClientIP(r))
	q := weather.CoordinatesQuery(loc.Lat, loc.Lon)

	obs, err := h.weather.Current(r.Context(), q)
	if err != nil {
		h.writeError(w, r, q, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.LocalWeather{
		Location: models.NewVisitorLocation(loc),
		Weather:  models.NewCurrentWeather(obs),
	})
}

// DailyForecast handles GET /v1/forecast/daily?city= or ?lat=&lon=.
func (h *WeatherHandler) DailyForecast(w http.ResponseWriter, r *http.Request) {
	q, fieldErrs := parseQuery(r)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid location parameters", fieldErrs)
		return
	}

	df, err := h.weather.GetDailyForecast(r.Context(), q)
	if err != nil {
		h.writeError(w, r, q, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.NewDailyForecast(df))
}

func (h *WeatherHandler) writeError(w http.ResponseWriter, r *http.Request, q weather.Query, err error) {
	status, detail := weatherErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Warn().Err(err).Str("query", q.String()).Int("status", status).Msg("weather request failed")
	}

	switch status {
	case http.StatusBadRequest:
		response.BadRequest(w, r, detail, nil)
	case http.StatusNotFound:
		response.NotFound(w, r, detail)
	case http.StatusBadGateway:
		response.BadGateway(w, r, detail)
	case http.StatusServiceUnavailable:
		response.ServiceUnavailable(w, r, detail)
	default:
		response.InternalError(w, r, detail)
	}
}

// weatherErrorStatus maps weather service errors to an HTTP status and a
// client-safe message.
func weatherErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, weather.ErrInvalidCoordinates):
		return http.StatusBadRequest, "coordinates out of range"
	case errors.Is(err, weather.ErrInvalidQuery):
		return http.StatusBadRequest, "either city or lat and lon must be given"
	case errors.Is(err, weather.ErrLocationNotFound):
		return http.StatusNotFound, "location not found"
	case errors.Is(err, weather.ErrUnauthorized):
		return http.StatusBadGateway, "weather provider credentials are misconfigured"
	case errors.Is(err, weather.ErrInvalidForecast):
		return http.StatusBadGateway, "weather provider returned an unusable forecast"
	case errors.Is(err, weather.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, "weather provider unavailable"
	default:
		return http.StatusInternalServerError, "weather lookup failed"
	}
}

// parseQuery reads city or lat/lon from the query string. Range checks are
// left to weather.Query.Validate.
func parseQuery(r *http.Request) (weather.Query, []models.FieldError) {
	values := r.URL.Query()
	city := strings.TrimSpace(values.Get("city"))
	latRaw := strings.TrimSpace(values.Get("lat"))
	lonRaw := strings.TrimSpace(values.Get("lon"))

	if latRaw == "" && lonRaw == "" {
		return weather.CityQuery(city), nil
	}

	var errs []models.FieldError
	lat, err := parseCoordinate("lat", latRaw)
	if err != nil {
		errs = append(errs, *err)
	}
	lon, err := parseCoordinate("lon", lonRaw)
	if err != nil {
		errs = append(errs, *err)
	}
	if len(errs) > 0 {
		return weather.Query{}, errs
	}

	q := weather.CoordinatesQuery(lat, lon)
	q.City = city
	return q, nil
}

func parseCoordinate(field, raw string) (float64, *models.FieldError) {
	if raw == "" {
		return 0, &models.FieldError{Field: field, Message: "is required with the other coordinate", Code: "REQUIRED"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.FieldError{Field: field, Message: "must be a number", Code: "NUMERIC"}
	}
	return v, nil
}

// ClientIP returns the caller's address without port. chi's RealIP middleware
// has already replaced RemoteAddr with X-Forwarded-For/X-Real-IP when present.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
