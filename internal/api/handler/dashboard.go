package handler

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/api/response"
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/weather"
)

//go:embed templates/dashboard.html
var templatesFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html").
		Funcs(template.FuncMap{"num": formatNumber}).
		ParseFS(templatesFS, "templates/dashboard.html"),
)

// DashboardHandler renders the HTML weather dashboard.
type DashboardHandler struct {
	weather *weather.Service
	geo     *geolocation.Service
	logger  zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(weatherService *weather.Service, geo *geolocation.Service, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		weather: weatherService,
		geo:     geo,
		logger:  logger,
	}
}

type dashboardPage struct {
	City string
	Lat  string
	Lon  string

	Visitor      models.VisitorLocation
	Current      *models.CurrentWeather
	CurrentError string

	ForecastTitle string
	Forecast      *models.DailyForecast
	ForecastError string
	Chart         *temperatureChart
}

// Dashboard handles GET / - current weather for the visitor plus a daily
// forecast for the searched city, the entered coordinates, or the visitor.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc := h.geo.Locate(ctx, ClientIP(r))

	page := dashboardPage{
		City:    strings.TrimSpace(r.URL.Query().Get("city")),
		Lat:     strings.TrimSpace(r.URL.Query().Get("lat")),
		Lon:     strings.TrimSpace(r.URL.Query().Get("lon")),
		Visitor: models.NewVisitorLocation(loc),
	}

	obs, err := h.weather.Current(ctx, weather.CoordinatesQuery(loc.Lat, loc.Lon))
	if err != nil {
		_, page.CurrentError = weatherErrorStatus(err)
		h.logger.Warn().Err(err).Msg("dashboard current weather failed")
	} else {
		cw := models.NewCurrentWeather(obs)
		page.Current = &cw
	}

	status := h.fillForecast(ctx, r, &page, loc)

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, page); err != nil {
		h.logger.Error().Err(err).Msg("render dashboard")
		response.InternalError(w, r, "failed to render dashboard")
		return
	}
	response.HTML(w, r, status, buf.Bytes())
}

// fillForecast resolves which forecast the page shows and returns the page
// status. Failures for an explicit search set the matching error status.
func (h *DashboardHandler) fillForecast(ctx context.Context, r *http.Request, page *dashboardPage, loc geolocation.Location) int {
	q, fieldErrs := parseQuery(r)
	explicit := page.City != "" || page.Lat != "" || page.Lon != ""

	switch {
	case len(fieldErrs) > 0:
		page.ForecastError = "위도와 경도는 숫자로 함께 입력해야 합니다."
		return http.StatusBadRequest
	case !explicit:
		q = weather.CoordinatesQuery(loc.Lat, loc.Lon)
		page.ForecastTitle = loc.City
	case q.HasCoordinates:
		page.ForecastTitle = fmt.Sprintf("%.4f, %.4f", q.Lat, q.Lon)
	default:
		page.ForecastTitle = q.City
	}

	df, err := h.weather.GetDailyForecast(ctx, q)
	if err != nil {
		status, detail := weatherErrorStatus(err)
		page.ForecastError = detail
		h.logger.Warn().Err(err).Str("query", q.String()).Msg("dashboard forecast failed")
		if explicit {
			return status
		}
		return http.StatusOK
	}

	mf := models.NewDailyForecast(df)
	page.Forecast = &mf
	if mf.Location.City != "" {
		page.ForecastTitle = mf.Location.City
	}
	page.Chart = newTemperatureChart(mf.Days)
	return http.StatusOK
}

// Chart geometry in SVG user units.
const (
	chartWidth   = 720
	chartHeight  = 280
	chartPadding = 40
)

type chartLabel struct {
	X, Y float64
	Text string
}

// temperatureChart holds the polylines for daily min, max and mean temperature.
type temperatureChart struct {
	Width, Height int
	MinPoints     string
	MaxPoints     string
	MeanPoints    string
	XLabels       []chartLabel
	YLabels       []chartLabel
}

func newTemperatureChart(days []models.DaySummary) *temperatureChart {
	if len(days) == 0 {
		return nil
	}

	lo, hi := days[0].TempMin, days[0].TempMax
	for _, d := range days[1:] {
		lo = math.Min(lo, d.TempMin)
		hi = math.Max(hi, d.TempMax)
	}
	lo, hi = math.Floor(lo)-1, math.Ceil(hi)+1

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)
	x := func(i int) float64 {
		if len(days) == 1 {
			return chartPadding + plotW/2
		}
		return chartPadding + plotW*float64(i)/float64(len(days)-1)
	}
	y := func(v float64) float64 {
		return chartPadding + plotH*(hi-v)/(hi-lo)
	}

	var minPts, maxPts, meanPts []string
	chart := &temperatureChart{Width: chartWidth, Height: chartHeight}
	for i, d := range days {
		minPts = append(minPts, point(x(i), y(d.TempMin)))
		maxPts = append(maxPts, point(x(i), y(d.TempMax)))
		meanPts = append(meanPts, point(x(i), y(d.TempMean)))
		chart.XLabels = append(chart.XLabels, chartLabel{
			X:    x(i),
			Y:    chartHeight - chartPadding/2,
			Text: d.Date.String()[5:],
		})
	}
	chart.MinPoints = strings.Join(minPts, " ")
	chart.MaxPoints = strings.Join(maxPts, " ")
	chart.MeanPoints = strings.Join(meanPts, " ")

	const ticks = 4
	for i := 0; i <= ticks; i++ {
		v := lo + (hi-lo)*float64(i)/ticks
		chart.YLabels = append(chart.YLabels, chartLabel{
			X:    chartPadding - 6,
			Y:    y(v),
			Text: formatNumber(v) + "°",
		})
	}
	return chart
}

func point(x, y float64) string {
	return strconv.FormatFloat(x, 'f', 1, 64) + "," + strconv.FormatFloat(y, 'f', 1, 64)
}

// formatNumber renders a statistic with at most one decimal.
func formatNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "-0" {
		return "0"
	}
	return s
}
