package domain

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// HRMSProvider is an HR system the employer can sync from.
type HRMSProvider struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Popular bool   `json:"popular"`
}

// DataPoint is an employee attribute the HR sync can share.
type DataPoint struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Required    bool   `json:"required"`
	Default     bool   `json:"default"`
}

// Providers lists the supported HR systems.
var Providers = []HRMSProvider{
	{ID: "workday", Name: "Workday", Popular: true},
	{ID: "bamboohr", Name: "BambooHR", Popular: true},
	{ID: "sap", Name: "SAP SuccessFactors", Popular: true},
	{ID: "adp", Name: "ADP Workforce"},
	{ID: "oracle", Name: "Oracle HCM"},
	{ID: "zoho", Name: "Zoho People"},
}

// DataPoints lists the attributes an HR sync can share.
var DataPoints = []DataPoint{
	{ID: "name", Label: "Employee Name", Description: "Full name of the employee", Category: "basic", Required: true, Default: true},
	{ID: "email", Label: "Email Address", Description: "Work email address", Category: "basic", Required: true, Default: true},
	{ID: "empId", Label: "Employee ID", Description: "Unique employee identifier", Category: "basic", Required: true, Default: true},
	{ID: "department", Label: "Department", Description: "Employee department/team", Category: "basic", Required: true, Default: true},
	{ID: "salary", Label: "Salary Information", Description: "Current compensation details", Category: "financial", Default: true},
	{ID: "tenure", Label: "Tenure", Description: "Years of service", Category: "basic", Default: true},
	{ID: "performance", Label: "Performance Rating", Description: "Latest performance score", Category: "performance"},
	{ID: "bonus", Label: "Bonus/Incentive", Description: "Variable pay information", Category: "financial"},
}

// Validation errors for HR setup.
var (
	ErrUnknownProvider   = errors.New("unknown HRMS provider")
	ErrUnknownDataPoint  = errors.New("unknown data point")
	ErrRequiredDataPoint = errors.New("required data point cannot be disabled")
)

// HRSetup records whether the employer finished HR onboarding.
type HRSetup struct {
	UserID     string    `json:"-"`
	Complete   bool      `json:"complete"`
	Provider   string    `json:"provider,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	DataPoints []string  `json:"data_points"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Validate checks the provider and that every required data point is shared.
// Duplicate ids are removed and the list is put in catalogue order.
func (h *HRSetup) Validate() error {
	if !slices.ContainsFunc(Providers, func(p HRMSProvider) bool { return p.ID == h.Provider }) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, h.Provider)
	}
	enabled := make(map[string]bool, len(h.DataPoints))
	for _, id := range h.DataPoints {
		if !slices.ContainsFunc(DataPoints, func(d DataPoint) bool { return d.ID == id }) {
			return fmt.Errorf("%w: %q", ErrUnknownDataPoint, id)
		}
		enabled[id] = true
	}
	ordered := make([]string, 0, len(enabled))
	for _, d := range DataPoints {
		if d.Required && !enabled[d.ID] {
			return fmt.Errorf("%w: %q", ErrRequiredDataPoint, d.ID)
		}
		if enabled[d.ID] {
			ordered = append(ordered, d.ID)
		}
	}
	h.DataPoints = ordered
	return nil
}

// DefaultDataPoints returns the ids enabled before the employer edits them.
func DefaultDataPoints() []string {
	var ids []string
	for _, d := range DataPoints {
		if d.Default {
			ids = append(ids, d.ID)
		}
	}
	return ids
}
