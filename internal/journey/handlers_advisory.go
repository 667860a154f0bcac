package journey

import (
	"context"
	"time"
)

// Tax planning, investment and insurance have no step tracker: one offer,
// an optional confirmation, then the result.

func (s *Session) startTaxPlanning(ctx context.Context) error {
	return s.presentPlan(ctx, []string{
		"Analyzing tax profile...",
		"Calculating savings...",
		"Plan ready!",
	}, "Your personalized tax-saving plan:", taxPlan)
}

func (s *Session) startInvestment(ctx context.Context) error {
	return s.presentPlan(ctx, []string{
		"Analyzing goals...",
		"Building portfolio...",
		"Ready!",
	}, "Here's your personalized investment portfolio:", portfolio)
}

func (s *Session) startInsurance(ctx context.Context) error {
	return s.presentPlan(ctx, []string{
		"Assessing insurance needs...",
		"Calculating coverage...",
		"Plan ready!",
	}, "Your insurance protection plan:", insurancePlan)
}

func (s *Session) presentPlan(ctx context.Context, thinking []string, intro string, plan Offer) error {
	if err := s.think(ctx, thinking, 800*time.Millisecond); err != nil {
		return err
	}
	s.say(intro)
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{Kind: KindJourneyStep, Payload: plan})
	return nil
}

func (s *Session) startInvestments(ctx context.Context, _ Request) error {
	if err := s.expect(TaxPlanning, -1); err != nil {
		return err
	}
	s.echo("Start Tax-Saving Investments ✓")
	if err := s.think(ctx, []string{
		"Setting up investments...",
		"Accounts configured",
		"Processing...",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	s.finish()
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Tax-Saving Plan Activated!",
			Reference: s.ref(RefTax),
			Details: []string{
				"ELSS SIP: ₹10k/month",
				"PPF: ₹30k invested",
				"Health Insurance: ₹18k/year",
				"Tax Saved: ₹67,500 annually",
			},
			NextSteps: []string{
				"Track via Employee Connect Pro app",
				"Auto 80C certificate at year-end",
				"Annual rebalancing scheduled",
			},
		},
	})
	return nil
}

func (s *Session) startSIP(ctx context.Context, _ Request) error {
	if err := s.expect(Investment, -1); err != nil {
		return err
	}
	s.echo("Start SIP Investment ✓")
	if err := s.think(ctx, []string{
		"Setting up SIP...",
		"Auto-debit configured",
		"Complete!",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	s.finish()
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "SIP Investment Started!",
			Reference: s.ref(RefSIP),
			Details: []string{
				"Monthly: ₹25,000 (Diversified)",
				"First debit: 1st of next month",
				"Auto-rebalancing enabled",
				"Tax optimization active",
			},
			NextSteps: []string{
				"Track via Employee Connect Pro app",
				"Monthly SMS confirmations",
				"Auto annual portfolio review",
			},
		},
	})
	return nil
}

func (s *Session) purchaseInsurance(ctx context.Context, _ Request) error {
	if err := s.expect(Insurance, -1); err != nil {
		return err
	}
	s.echo("Purchase Insurance Package ✓")
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.say("Provide your health details:")
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title: "Health & Medical History",
			Fields: []Field{
				{Label: "Height", Value: "175 cm", Editable: true},
				{Label: "Weight", Value: "75 kg", Editable: true},
				{Label: "Blood Pressure", Value: "Normal", Editable: true},
				{Label: "Diabetes", Value: "No", Verified: true},
				{Label: "Smoking", Value: "No", Verified: true},
				{Label: "Pre-existing Conditions", Value: "None declared", Verified: true},
			},
			Action: ActConfirmHealth,
		},
	})
	return nil
}

func (s *Session) confirmHealth(ctx context.Context, _ Request) error {
	if err := s.expect(Insurance, -1); err != nil {
		return err
	}
	s.echo("Health details confirmed ✓")
	if err := s.think(ctx, []string{
		"Processing application...",
		"Health verified",
		"Issuing policies...",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	s.finish()
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Insurance Policies Issued!",
			Reference: s.ref(RefInsurance),
			Details: []string{
				"Term Life: ₹1 Cr coverage",
				"Health: ₹10L family floater",
				"Critical Illness: ₹50L",
				"Premium: ₹38k/year (auto-debit)",
			},
			NextSteps: []string{
				"Cards arrive in 7 days",
				"Policy docs sent to email",
				"Update nominees in app",
			},
		},
	})
	return nil
}
