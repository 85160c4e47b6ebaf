// Package main provides the forecast command, which prints the daily
// forecast summary and precipitation alerts for a city or coordinates.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	flag "github.com/spf13/pflag"

	"github.com/weatherboard/weatherboard/internal/api/models"
	"github.com/weatherboard/weatherboard/internal/config"
	"github.com/weatherboard/weatherboard/internal/geolocation"
	"github.com/weatherboard/weatherboard/internal/provider/resilience"
	"github.com/weatherboard/weatherboard/internal/weather"
	"github.com/weatherboard/weatherboard/internal/weather/openweathermap"
)

// errUsage marks invalid flag combinations.
var errUsage = errors.New("usage")

type options struct {
	city     string
	lat      float64
	lon      float64
	here     bool
	apiKey   string
	asJSON   bool
	verbose  bool
	baseURL  string
	geoURL   string
	hasCoord bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "forecast:", err)
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&o.city, "city", "c", "", "city name, e.g. 서울 or Seoul")
	fs.Float64Var(&o.lat, "lat", 0, "latitude")
	fs.Float64Var(&o.lon, "lon", 0, "longitude")
	fs.BoolVar(&o.here, "here", false, "use the location of this machine's public IP")
	fs.StringVar(&o.apiKey, "api-key", "", "OpenWeatherMap API key (default $OPENWEATHER_API_KEY)")
	fs.BoolVar(&o.asJSON, "json", false, "print the JSON document instead of a table")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "log provider calls to stderr")
	fs.StringVar(&o.baseURL, "base-url", "", "OpenWeatherMap API base URL")
	fs.StringVar(&o.geoURL, "geoip-url", "", "IP geolocation endpoint (default $GEOIP_URL)")
	_ = fs.MarkHidden("base-url")

	if err := fs.Parse(args); err != nil {
		return o, err
	}

	o.hasCoord = fs.Changed("lat") || fs.Changed("lon")
	if o.hasCoord && !(fs.Changed("lat") && fs.Changed("lon")) {
		return o, fmt.Errorf("%w: --lat and --lon must be given together", errUsage)
	}

	selectors := 0
	for _, set := range []bool{o.city != "", o.hasCoord, o.here} {
		if set {
			selectors++
		}
	}
	if selectors != 1 {
		return o, fmt.Errorf("%w: exactly one of --city, --lat/--lon or --here is required", errUsage)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.apiKey != "" {
		cfg.OpenWeather.APIKey = o.apiKey
	}
	if cfg.OpenWeather.APIKey == "" {
		return fmt.Errorf("%w: no API key, set OPENWEATHER_API_KEY or pass --api-key", errUsage)
	}
	if o.geoURL != "" {
		cfg.Geo.URL = o.geoURL
	}

	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	clientCfg := resilience.DefaultClientConfig(openweathermap.ProviderName)
	clientCfg.MaxRetries = 2
	provider := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.OpenWeather.APIKey,
		BaseURL:    o.baseURL,
		Lang:       cfg.OpenWeather.Lang,
		Units:      cfg.OpenWeather.Units,
		HTTPClient: resilience.NewClient(clientCfg),
		Logger:     log,
	})
	svc := weather.NewService(weather.ServiceConfig{Provider: provider, Logger: log})

	q, err := resolveQuery(ctx, o, cfg.Geo, log)
	if err != nil {
		return err
	}

	fc, err := svc.GetDailyForecast(ctx, q)
	if err != nil {
		return fmt.Errorf("forecast for %s: %w", q, err)
	}

	if o.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(models.NewDailyForecast(fc))
	}
	return writeReport(stdout, fc)
}

func resolveQuery(ctx context.Context, o options, geo config.GeoConfig, log zerolog.Logger) (weather.Query, error) {
	switch {
	case o.city != "":
		return weather.CityQuery(o.city), nil
	case o.hasCoord:
		return weather.CoordinatesQuery(o.lat, o.lon), nil
	}

	locator := geolocation.NewService(geolocation.ServiceConfig{
		Locator: geolocation.NewIPAPIClient(geolocation.IPAPIConfig{BaseURL: geo.URL, Logger: log}),
		Fallback: geolocation.Location{
			Lat:  geo.DefaultLat,
			Lon:  geo.DefaultLon,
			City: geo.DefaultCity,
		},
		Logger: log,
	})
	loc := locator.Locate(ctx, "")
	if loc.Fallback {
		log.Warn().Str("city", loc.City).Msg("could not locate this machine, using default location")
	}
	return weather.CoordinatesQuery(loc.Lat, loc.Lon), nil
}

// writeReport prints the location header, one row per day and the alert lines.
func writeReport(w io.Writer, fc *weather.DailyForecast) error {
	loc := fc.Location.City
	if fc.Location.Country != "" {
		loc += ", " + fc.Location.Country
	}
	if _, err := fmt.Fprintf(w, "%s (%.4f, %.4f)\n\n", loc, fc.Location.Lat, fc.Location.Lon); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\tn\ttemp min\tmax\tmean\thum min\tmax\tmean\twind min\tmax\tmean\train sum\tmean\tpeak\tsnow sum\tmean\tpeak\t")
	for _, d := range fc.Days {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			d.Date.Format(time.DateOnly), d.Samples,
			num(d.TempMin), num(d.TempMax), num(d.TempMean),
			d.HumidityMin, d.HumidityMax, num(d.HumidityMean),
			num(d.WindMin), num(d.WindMax), num(d.WindMean),
			num(d.RainTotal), num(d.RainMean), num(d.RainPeak),
			num(d.SnowTotal), num(d.SnowMean), num(d.SnowPeak),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	a := fc.Alerts
	window := a.WindowStart.Format(time.DateOnly) + " ~ " + a.WindowEnd.Format(time.DateOnly)
	fmt.Fprintln(w)
	if a.RainExpected {
		fmt.Fprintf(w, "비 예보: %s 사이에 비가 예상됩니다.\n", window)
	}
	if a.SnowExpected {
		fmt.Fprintf(w, "눈 예보: %s 사이에 눈이 예상됩니다.\n", window)
	}
	if !a.RainExpected && !a.SnowExpected {
		fmt.Fprintf(w, "%s 사이에 비나 눈 예보가 없습니다.\n", window)
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
