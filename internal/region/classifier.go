package region

import (
	"strings"

	"github.com/Havoc420didi/didi-amazon-analyst-sub001/internal/model"
	"go.uber.org/zap"
)

// euSet is the fulfilment EU: member states plus IS, LI, MC, SM, VA. UK is not included.
var euSet = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "CY": {}, "CZ": {}, "DE": {}, "DK": {}, "EE": {}, "ES": {},
	"FI": {}, "FR": {}, "GR": {}, "HR": {}, "HU": {}, "IE": {}, "IT": {}, "LT": {}, "LU": {},
	"LV": {}, "MT": {}, "NL": {}, "PL": {}, "PT": {}, "RO": {}, "SE": {}, "SI": {}, "SK": {},
	"IS": {}, "LI": {}, "MC": {}, "SM": {}, "VA": {},
}

// marketplaceCountries maps Amazon marketplace ids to country codes.
var marketplaceCountries = map[string]string{
	"ATVPDKIKX0DER":  "US",
	"A2EUQ1WTGCTBG2": "CA",
	"A1AM78C64UM0Y8": "MX",
	"A2Q3Y263D00KWC": "BR",
	"A1F83G8C2ARO7P": "UK",
	"A1PA6795UKMFR9": "DE",
	"A13V1IB3VIYZZH": "FR",
	"APJ6JRA9NG5V4":  "IT",
	"A1RKKUPIHCS9HS": "ES",
	"A1805IZSGTT6HS": "NL",
	"A2NODRKZP88ZB9": "SE",
	"A1C3SOZRARQ6R3": "PL",
	"AMEN7PMS3EDWL":  "BE",
	"A28R8C7NBKEWEA": "IE",
	"A33AVAJ2PDY3EV": "TR",
	"A21TJRUUN4KGV":  "IN",
	"A1VC38T7YXB528": "JP",
	"A39IBJ37TRP1C6": "AU",
	"A19VAU5U5O7RUS": "SG",
	"A2VIGQ35RCS4UG": "AE",
	"A17E79C6D8DWNP": "SA",
	"ARBP9OOSHTCHU":  "EG",
}

// countryAliases covers codes the ERP uses that differ from the region tag.
var countryAliases = map[string]string{
	"GB": "UK",
}

// knownCountries are the non-EU codes accepted verbatim.
var knownCountries = map[string]struct{}{
	"US": {}, "CA": {}, "MX": {}, "BR": {}, "UK": {}, "TR": {}, "IN": {}, "JP": {},
	"AU": {}, "SG": {}, "AE": {}, "SA": {}, "EG": {}, "CH": {}, "NO": {}, "ZA": {},
}

// ResolveCountry maps a marketplace id or country code to a country code.
func ResolveCountry(id string) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(id))
	if key == "" {
		return "", false
	}
	if c, ok := marketplaceCountries[key]; ok {
		return c, true
	}
	if c, ok := countryAliases[key]; ok {
		return c, true
	}
	if _, ok := euSet[key]; ok {
		return key, true
	}
	if _, ok := knownCountries[key]; ok {
		return key, true
	}
	return "", false
}

// IsEU reports whether the country code belongs to the EU region.
func IsEU(country string) bool {
	_, ok := euSet[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

// TagForCountry returns the region tag of an already resolved country.
func TagForCountry(country string) string {
	if IsEU(country) {
		return model.RegionEU
	}
	return country
}

type Classifier struct {
	logger *zap.Logger
}

func NewClassifier(log *zap.Logger) *Classifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{logger: log}
}

// Classify returns "EU", a non-EU country code, or "UNKNOWN" for ids it cannot resolve.
func (c *Classifier) Classify(marketplaceOrCountry string) string {
	country, ok := ResolveCountry(marketplaceOrCountry)
	if !ok {
		c.logger.Warn("unknown marketplace", zap.String("marketplace", marketplaceOrCountry))
		return model.RegionUnknown
	}
	return TagForCountry(country)
}
