package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/watchfi/storefront/internal/checkout"
	"github.com/watchfi/storefront/pkg/geo"
	"github.com/watchfi/storefront/pkg/logger"
)

const (
	StatusCountriesUnavailable = "Unable to load countries. Please try again."
	StatusCitiesUnavailable    = "Unable to load cities for the selected country."
)

// GeoLoader obtains the geography capability. It runs on first use, never at
// construction, and is retried on the next use after a failure.
type GeoLoader func(ctx context.Context) (geo.Provider, error)

// Wizard is the part of the checkout context the form writes to.
type Wizard interface {
	SetField(field checkout.Field, value string) error
	Billing() checkout.BillingData
}

type FormParams struct {
	Wizard Wizard
	Geo    GeoLoader
	Logger *logger.Logger
}

// Form is the billing step. The wizard holds the only copy of the values.
type Form struct {
	wizard Wizard
	loader GeoLoader
	logg   *logger.Logger

	loadMu   sync.Mutex
	provider geo.Provider
	// loaded is readable while a slow load holds loadMu
	loaded atomic.Bool

	mu          sync.RWMutex
	cities      []geo.City
	citiesFor   string
	status      string
	citiesEpoch int
}

func NewForm(params FormParams) (*Form, error) {
	if params.Wizard == nil {
		return nil, fmt.Errorf("wizard required")
	}
	if params.Geo == nil {
		return nil, fmt.Errorf("geo loader required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Form{wizard: params.Wizard, loader: params.Geo, logg: params.Logger}, nil
}

func (f *Form) capability(ctx context.Context) (geo.Provider, error) {
	f.loadMu.Lock()
	defer f.loadMu.Unlock()
	if f.provider != nil {
		return f.provider, nil
	}
	provider, err := f.loader(ctx)
	if err != nil {
		return nil, err
	}
	f.provider = provider
	f.loaded.Store(true)
	return provider, nil
}

// GeoLoaded reports whether the geography capability has been obtained. It
// never waits for a load in progress.
func (f *Form) GeoLoaded() bool {
	return f.loaded.Load()
}

// SetField writes one input into the wizard. Changing the country resets the
// city and refreshes the city options.
func (f *Form) SetField(ctx context.Context, field checkout.Field, value string) error {
	if field == checkout.FieldCountryCode {
		if normalizeISO(value) == f.wizard.Billing().CountryCode {
			return nil
		}
		_, err := f.SelectCountry(ctx, value)
		return err
	}
	return f.wizard.SetField(field, value)
}

func normalizeISO(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Countries returns the selectable countries. Failures yield an empty list
// and a status message.
func (f *Form) Countries(ctx context.Context) []geo.Country {
	provider, err := f.capability(ctx)
	if err == nil {
		var countries []geo.Country
		countries, err = provider.Countries(ctx)
		if err == nil {
			f.setStatus("")
			return countries
		}
	}
	f.logg.Warn(f.logg.WithField(ctx, "error", err.Error()), "billing.countries.unavailable")
	f.setStatus(StatusCountriesUnavailable)
	return []geo.Country{}
}

// SelectCountry stores the country, clears the city and loads the cities of
// that country. A failed city fetch leaves an empty list.
func (f *Form) SelectCountry(ctx context.Context, isoCode string) ([]geo.City, error) {
	iso := normalizeISO(isoCode)
	if err := f.wizard.SetField(checkout.FieldCountryCode, iso); err != nil {
		return nil, err
	}
	if err := f.wizard.SetField(checkout.FieldCity, ""); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.citiesEpoch++
	epoch := f.citiesEpoch
	f.cities = nil
	f.citiesFor = iso
	f.mu.Unlock()

	if iso == "" {
		return []geo.City{}, nil
	}
	return f.loadCities(ctx, iso, epoch), nil
}

// Cities returns the options for the selected country, loading them if needed.
func (f *Form) Cities(ctx context.Context) []geo.City {
	iso := f.wizard.Billing().CountryCode
	if iso == "" {
		return []geo.City{}
	}
	f.mu.RLock()
	if f.citiesFor == iso && f.cities != nil {
		out := append([]geo.City(nil), f.cities...)
		f.mu.RUnlock()
		return out
	}
	epoch := f.citiesEpoch
	f.mu.RUnlock()
	return f.loadCities(ctx, iso, epoch)
}

func (f *Form) loadCities(ctx context.Context, iso string, epoch int) []geo.City {
	cities, err := f.fetchCities(ctx, iso)
	if err != nil {
		f.logg.Warn(f.logg.WithFields(ctx, map[string]any{"country": iso, "error": err.Error()}), "billing.cities.unavailable")
		f.setStatus(StatusCitiesUnavailable)
		return []geo.City{}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// a newer country selection wins over a slow response
	if f.citiesEpoch == epoch {
		f.cities = cities
		f.citiesFor = iso
		if f.status == StatusCitiesUnavailable {
			f.status = ""
		}
	}
	return append([]geo.City(nil), cities...)
}

func (f *Form) fetchCities(ctx context.Context, iso string) ([]geo.City, error) {
	provider, err := f.capability(ctx)
	if err != nil {
		return nil, err
	}
	cities, err := provider.Cities(ctx, iso)
	if err != nil {
		return nil, err
	}
	if cities == nil {
		cities = []geo.City{}
	}
	return cities, nil
}

// FieldErrors maps each empty field to its "is required" message.
func (f *Form) FieldErrors() map[string]string {
	errs := map[string]string{}
	for _, field := range f.wizard.Billing().Missing() {
		errs[string(field)] = field.Label() + " is required"
	}
	return errs
}

// Status is the last non-fatal geography message, if any.
func (f *Form) Status() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.status
}

func (f *Form) setStatus(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = msg
}
