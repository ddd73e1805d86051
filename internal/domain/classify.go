package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type sectorRule struct {
	sector  Sector
	pattern *regexp.Regexp
}

// sectorRules are checked in order against a normalized label; the first match wins.
var sectorRules = []sectorRule{
	{SectorIndustry, regexp.MustCompile(`\b(industr|manufactur)`)},
	{SectorBuilding, regexp.MustCompile(`\b(build|residential|hous)`)},
	{SectorTransportation, regexp.MustCompile(`\b(transport|traffic|mobility|road|rail)`)},
	{SectorAgriculture, regexp.MustCompile(`\b(agri|farm|livestock)`)},
}

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// CO2SectorOverrides maps labels used by the emissions export onto the taxonomy.
var CO2SectorOverrides = map[string]Sector{
	"Traffic": SectorTransportation,
}

// Classifier maps free-text category labels onto the sector taxonomy.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	exact  map[string]Sector
	folded map[string]Sector
}

// NewClassifier builds a classifier. Overrides are matched against the trimmed
// label before any keyword rule, first exactly and then case-insensitively.
func NewClassifier(overrides map[string]Sector) *Classifier {
	c := &Classifier{
		exact:  make(map[string]Sector, len(overrides)),
		folded: make(map[string]Sector, len(overrides)),
	}
	for label, sector := range overrides {
		key := strings.TrimSpace(label)
		c.exact[key] = sector
		c.folded[strings.ToLower(key)] = sector
	}
	return c
}

// Classify returns the sector for label, or the trimmed label itself when
// nothing matches.
func (c *Classifier) Classify(label string) Sector {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return ""
	}
	if c != nil {
		if s, ok := c.exact[trimmed]; ok {
			return s
		}
		if s, ok := c.folded[strings.ToLower(trimmed)]; ok {
			return s
		}
	}
	if s, ok := matchSector(normalizeLabel(trimmed)); ok {
		return s
	}
	return Sector(trimmed)
}

func matchSector(normalized string) (Sector, bool) {
	for _, rule := range sectorRules {
		if rule.pattern.MatchString(normalized) {
			return rule.sector, true
		}
	}
	return "", false
}

// normalizeLabel lowercases, strips diacritics, replaces punctuation with
// spaces, and collapses whitespace.
func normalizeLabel(label string) string {
	s := strings.ToLower(label)
	// Transformers carry state, so build one per call.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = nonWord.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}
