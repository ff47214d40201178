// internal/registration/validator/provinces.go
package validator

import (
	"regexp"
	"sort"
	"strings"
)

// City is a selectable city option. Value is the slug stored in the draft.
type City struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var provinceCityLabels = map[string][]string{
	"western-cape":  {"Cape Town", "Stellenbosch", "Paarl", "George", "Worcester", "Mossel Bay"},
	"gauteng":       {"Johannesburg", "Pretoria", "Soweto", "Sandton", "Randburg", "Roodepoort"},
	"kwazulu-natal": {"Durban", "Pietermaritzburg", "Newcastle", "Richards Bay", "Ladysmith"},
	"eastern-cape":  {"Port Elizabeth", "East London", "Uitenhage", "King Williams Town", "Grahamstown"},
	"limpopo":       {"Polokwane", "Tzaneen", "Thohoyandou", "Giyani", "Musina"},
	"mpumalanga":    {"Nelspruit", "Witbank", "Secunda", "Middelburg", "Standerton"},
	"north-west":    {"Mahikeng", "Rustenburg", "Klerksdorp", "Potchefstroom", "Brits"},
	"northern-cape": {"Kimberley", "Upington", "Springbok", "De Aar", "Kuruman"},
	"free-state":    {"Bloemfontein", "Welkom", "Kroonstad", "Bethlehem", "Sasolburg"},
}

var slugSpaces = regexp.MustCompile(`\s+`)

// Slug lowercases label and joins words with hyphens.
func Slug(label string) string {
	return slugSpaces.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "-")
}

// CitiesFor returns the cities of province, or nil for an unknown province.
func CitiesFor(province string) []City {
	labels := provinceCityLabels[province]
	if labels == nil {
		return nil
	}
	out := make([]City, len(labels))
	for i, l := range labels {
		out[i] = City{Value: Slug(l), Label: l}
	}
	return out
}

// Provinces returns the province keys in sorted order.
func Provinces() []string {
	out := make([]string, 0, len(provinceCityLabels))
	for p := range provinceCityLabels {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
