package journey

// Fixed product content shown by the journeys.

const (
	salaryAccountName = "Kotak811 Salary Account"
	salaryAccountIFSC = "KKBK0000001"
)

var loanPlans = []PlanOption{
	{Label: "₹5L for 36 months", EMI: "₹16,369/month"},
	{Label: "₹10L for 48 months", EMI: "₹25,845/month"},
	{Label: "₹15L for 60 months", EMI: "₹32,612/month"},
}

var loanOffer = Offer{
	Title:     "Pre-Approved Personal Loan",
	Highlight: "Up to ₹15L at 10.99% p.a.",
	Details: []Detail{
		{Label: "Loan Amount", Value: "Up to ₹15L"},
		{Label: "Interest Rate", Value: "10.99% p.a. (indicative)"},
		{Label: "Tenure", Value: "12-60 months"},
		{Label: "Processing Fee", Value: "₹999 (Corporate offer)"},
		{Label: "Disbursal", Value: "Instant Disbursal"},
	},
	Options: loanPlans,
	Action:  ActSelectLoan,
}

var creditCards = []CardOption{
	{
		Name:  "Kotak811 811 Super Credit Card",
		Limit: "₹5L limit",
		Fee:   "₹500/year (1st year free)",
		Benefits: []string{
			"5% cashback on Amazon, Flipkart",
			"2.5% cashback on all other spends",
			"500 reward points on joining",
			"Fuel surcharge waiver",
			"Complimentary airport lounge access (2/year)",
		},
	},
	{
		Name:  "Kotak811 Royale Signature Credit Card",
		Limit: "₹8L limit",
		Fee:   "₹1,500/year (waived on ₹2L spends)",
		Benefits: []string{
			"4 reward points per ₹150 spent",
			"Unlimited domestic lounge access",
			"International lounge access (4/year)",
			"Complimentary movie tickets (1/month)",
			"₹2,500 welcome voucher",
		},
	},
	{
		Name:  "Kotak811 White Reserve Credit Card",
		Limit: "₹10L limit",
		Fee:   "₹5,000/year (Super premium)",
		Benefits: []string{
			"10X rewards on travel & dining",
			"Unlimited lounge access worldwide",
			"Concierge service 24/7",
			"Golf privileges at 100+ courses",
			"₹5,000 Taj voucher on joining",
		},
	},
}

func cardOffer(highlight string, action ActionID) Offer {
	return Offer{
		Title:     "Pre-Approved Credit Cards",
		Highlight: highlight,
		Cards:     creditCards,
		Action:    action,
	}
}

func loanLabels() []string {
	out := make([]string, len(loanPlans))
	for i, p := range loanPlans {
		out[i] = p.Label
	}
	return out
}

func cardNames() []string {
	out := make([]string, len(creditCards))
	for i, c := range creditCards {
		out[i] = c.Name
	}
	return out
}

func cardByName(name string) CardOption {
	for _, c := range creditCards {
		if c.Name == name {
			return c
		}
	}
	return CardOption{Name: name}
}

var taxPlan = Offer{
	Title:     "Tax Optimization Plan",
	Highlight: "Save ₹1,56,000 in taxes",
	Sections: []Section{
		{
			Name: "Section 80C - ₹1,50,000",
			Items: []SectionItem{
				{Name: "ELSS Mutual Funds", Amount: "₹1,00,000", Returns: "12-15% potential"},
				{Name: "PPF", Amount: "₹30,000", Returns: "7.1% assured"},
				{Name: "Life Insurance", Amount: "₹20,000", Returns: "Protection"},
			},
		},
		{
			Name: "Section 80D - ₹25,000",
			Items: []SectionItem{
				{Name: "Health Insurance (Self)", Amount: "₹15,000", Returns: "Coverage ₹5L"},
				{Name: "Health Insurance (Parents)", Amount: "₹10,000", Returns: "Coverage ₹3L"},
			},
		},
		{
			Name: "Section 80CCD(1B) - ₹50,000",
			Items: []SectionItem{
				{Name: "NPS Investment", Amount: "₹50,000", Returns: "10-12% potential"},
			},
		},
	},
	Summary: &Summary{
		TotalInvestment:   "₹2,25,000",
		TaxSaved:          "₹67,500",
		AdditionalReturns: "₹88,500 (estimated)",
	},
	Action: ActStartInvestments,
}

var portfolio = Offer{
	Title:     "Smart Investment Portfolio",
	Highlight: "₹25,000/month SIP",
	Allocation: []Allocation{
		{Category: "Large Cap Equity", Percentage: 40, Amount: "₹10,000", Risk: "Medium", Returns: "12-14%"},
		{Category: "Mid/Small Cap Equity", Percentage: 30, Amount: "₹7,500", Risk: "High", Returns: "15-18%"},
		{Category: "Debt Funds", Percentage: 20, Amount: "₹5,000", Risk: "Low", Returns: "7-9%"},
		{Category: "Gold ETF", Percentage: 10, Amount: "₹2,500", Risk: "Medium", Returns: "8-10%"},
	},
	Projections: []Projection{
		{Year: 1, Amount: "₹3.2L", Returns: "₹14K"},
		{Year: 3, Amount: "₹10.8L", Returns: "₹72K"},
		{Year: 5, Amount: "₹20.2L", Returns: "₹2.2L"},
		{Year: 10, Amount: "₹58.4L", Returns: "₹28.4L"},
	},
	Action: ActStartSIP,
}

var insurancePlan = Offer{
	Title:     "Complete Insurance Protection",
	Highlight: "Coverage worth ₹1.5 Cr",
	Sections: []Section{
		{
			Name: "Term Life Insurance - ₹1 Cr Coverage",
			Items: []SectionItem{
				{Name: "Annual Premium", Amount: "₹12,000", Returns: "Save ₹3,000"},
				{Name: "Coverage Period", Amount: "30 years", Returns: "Till age 60"},
				{Name: "Special Features", Amount: "Accidental death benefit", Returns: "2x payout"},
			},
		},
		{
			Name: "Health Insurance - Family Floater ₹10L",
			Items: []SectionItem{
				{Name: "Annual Premium", Amount: "₹18,000", Returns: "Corporate discount"},
				{Name: "Coverage", Amount: "Self + Spouse + 2 Kids", Returns: "₹10L floater"},
				{Name: "Benefits", Amount: "Cashless in 6000+ hospitals", Returns: "No waiting period"},
			},
		},
		{
			Name: "Critical Illness Cover - ₹50L",
			Items: []SectionItem{
				{Name: "Annual Premium", Amount: "₹8,000", Returns: "Lump sum payout"},
				{Name: "Coverage", Amount: "36 critical illnesses", Returns: "Instant payout"},
				{Name: "Add-on", Amount: "Cancer care benefit", Returns: "₹25L extra"},
			},
		},
	},
	Summary: &Summary{
		TotalInvestment:   "₹38,000/year",
		TaxSaved:          "₹11,400 under 80D",
		AdditionalReturns: "Complete family protection",
	},
	Action: ActPurchaseInsurance,
}

func otpCard(title, subtitle, inputID string) InfoCard {
	return InfoCard{
		Title:    title,
		Subtitle: subtitle,
		Input:    &Input{Type: "otp", Placeholder: "Enter 6-digit OTP", ID: inputID},
	}
}

func applicantFields(p Profile) []Field {
	return []Field{
		{Label: "Full Name", Value: p.Name, Verified: true},
		{Label: "PAN Number", Value: p.PAN, Verified: true},
		{Label: "Date of Birth", Value: p.DOB, Verified: true},
		{Label: "Employment", Value: p.Company, Verified: true},
		{Label: "Annual Income", Value: p.Income(), Verified: true},
		{Label: "Email", Value: p.Email, Verified: true},
		{Label: "Mobile", Value: p.Phone, Verified: true},
	}
}
