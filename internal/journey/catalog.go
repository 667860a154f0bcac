package journey

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
	"gopkg.in/yaml.v3"
)

// ID names a journey.
type ID string

const (
	BankAccount  ID = "bank-account"
	PersonalLoan ID = "personal-loan"
	CreditCard   ID = "credit-card"
	TaxPlanning  ID = "tax-planning"
	Investment   ID = "investment"
	Insurance    ID = "insurance"
)

// AllJourneys lists every journey the engine has handlers for.
func AllJourneys() []ID {
	return []ID{BankAccount, PersonalLoan, CreditCard, TaxPlanning, Investment, Insurance}
}

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Journey is the static definition of one journey.
type Journey struct {
	ID          ID       `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	Keywords    []string `yaml:"keywords" json:"keywords"`
	Steps       []string `yaml:"steps" json:"steps"`
}

// Catalog is the ordered set of journey definitions.
type Catalog struct {
	journeys []Journey
	byID     map[ID]int
}

type catalogFile struct {
	Journeys []Journey `yaml:"journeys"`
}

// LoadCatalog parses a YAML catalog. Every known journey must be defined
// exactly once and carry at least one keyword.
func LoadCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: parse catalog: %v", errdefs.ErrInvalidArgument, err)
	}

	c := &Catalog{byID: make(map[ID]int, len(f.Journeys))}
	for _, j := range f.Journeys {
		if _, dup := c.byID[j.ID]; dup {
			return nil, fmt.Errorf("%w: journey %q defined twice", errdefs.ErrInvalidArgument, j.ID)
		}
		if !knownJourney(j.ID) {
			return nil, fmt.Errorf("%w: journey %q has no handler", errdefs.ErrInvalidArgument, j.ID)
		}
		if len(j.Keywords) == 0 {
			return nil, fmt.Errorf("%w: journey %q has no keywords", errdefs.ErrInvalidArgument, j.ID)
		}
		for i, kw := range j.Keywords {
			j.Keywords[i] = strings.ToLower(strings.TrimSpace(kw))
		}
		c.byID[j.ID] = len(c.journeys)
		c.journeys = append(c.journeys, j)
	}
	for _, id := range AllJourneys() {
		if _, ok := c.byID[id]; !ok {
			return nil, fmt.Errorf("%w: journey %q missing from catalog", errdefs.ErrInvalidArgument, id)
		}
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog. It panics if the embedded file
// is invalid, which is a build defect.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("journey: embedded catalog: %v", err))
	}
	return c
}

// Get returns the journey with the given id.
func (c *Catalog) Get(id ID) (Journey, error) {
	i, ok := c.byID[id]
	if !ok {
		return Journey{}, fmt.Errorf("%w: journey %q", errdefs.ErrNotFound, id)
	}
	return c.journeys[i], nil
}

// List returns the journeys in catalog order.
func (c *Catalog) List() []Journey {
	out := make([]Journey, len(c.journeys))
	copy(out, c.journeys)
	return out
}

// ParseID validates a journey id from the wire.
func ParseID(s string) (ID, error) {
	id := ID(strings.TrimSpace(s))
	if !knownJourney(id) {
		return "", fmt.Errorf("%w: unknown journey %q", errdefs.ErrInvalidArgument, s)
	}
	return id, nil
}

func knownJourney(id ID) bool {
	for _, known := range AllJourneys() {
		if id == known {
			return true
		}
	}
	return false
}
