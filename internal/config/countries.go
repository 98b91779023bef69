package config

import (
	"fmt"
	"sort"
)

const trendsBaseURL = "https://xtrends.iamrohit.in/"

// countrySlugs maps a dashboard country name to the trends site path.
var countrySlugs = map[string]string{
	"turkey":      "turkey",
	"usa":         "united-states",
	"uk":          "united-kingdom",
	"germany":     "germany",
	"france":      "france",
	"italy":       "italy",
	"spain":       "spain",
	"netherlands": "netherlands",
	"canada":      "canada",
	"australia":   "australia",
	"japan":       "japan",
	"korea":       "south-korea",
	"india":       "india",
	"brazil":      "brazil",
	"mexico":      "mexico",
}

// Countries returns the supported trend countries, sorted
func Countries() []string {
	out := make([]string, 0, len(countrySlugs))
	for name := range countrySlugs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CountryURL returns the trend listing URL for a supported country
func CountryURL(country string) (string, bool) {
	slug, ok := countrySlugs[country]
	if !ok {
		return "", false
	}
	return trendsBaseURL + slug, true
}

// SourceURL resolves the page the trend fetcher should read
func (t TrendsConfig) SourceURL() (string, error) {
	if t.URL != "" {
		return t.URL, nil
	}
	url, ok := CountryURL(t.Country)
	if !ok {
		return "", fmt.Errorf("unsupported trend country %q", t.Country)
	}
	return url, nil
}
