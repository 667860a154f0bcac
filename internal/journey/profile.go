package journey

import (
	"fmt"
	"strings"
)

// Profile is the customer record journeys prefill from.
type Profile struct {
	Name         string `json:"name"`
	Company      string `json:"company"`
	EmployeeID   string `json:"employee_id"`
	AnnualSalary int64  `json:"annual_salary"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	PAN          string `json:"pan"`
	Address      string `json:"address"`
	Aadhaar      string `json:"aadhaar"`
	DOB          string `json:"dob"`
}

// DemoProfile is the pre-verified employee every session runs as.
func DemoProfile() Profile {
	return Profile{
		Name:         "Rahul Sharma",
		Company:      "Tech Corp India",
		EmployeeID:   "EMP12345",
		AnnualSalary: 850000,
		Email:        "rahul.sharma@techcorp.in",
		Phone:        "+91 98765 43210",
		PAN:          "ABCDE1234F",
		Address:      "123, MG Road, Bangalore - 560001",
		Aadhaar:      "XXXX XXXX 4567",
		DOB:          "15/08/1992",
	}
}

// FirstName returns the first word of the name.
func (p Profile) FirstName() string {
	if f := strings.Fields(p.Name); len(f) > 0 {
		return f[0]
	}
	return p.Name
}

// Income formats the annual salary in lakhs, e.g. ₹8.5L.
func (p Profile) Income() string {
	lakhs := float64(p.AnnualSalary) / 100000
	s := fmt.Sprintf("%.1f", lakhs)
	s = strings.TrimSuffix(s, ".0")
	return "₹" + s + "L"
}

// MaskedPhone hides all but the last four digits.
func (p Profile) MaskedPhone() string {
	digits := make([]rune, 0, len(p.Phone))
	for _, r := range p.Phone {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return p.Phone
	}
	return "XXXXXX" + string(digits[len(digits)-4:])
}
