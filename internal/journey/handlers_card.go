package journey

import (
	"context"
	"time"
)

func (s *Session) startCreditCard(ctx context.Context) error {
	s.setVars(func(v *Vars) {
		v.SelectedCard = ""
		v.Autopay = ""
	})
	s.say("I have your details from your profile. Please review and confirm before we proceed.")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title:  "Confirm Applicant Details",
			Fields: applicantFields(s.opts.Profile),
			Action: ActConfirmApplicant,
		},
	})
	return nil
}

func (s *Session) confirmApplicant(ctx context.Context, _ Request) error {
	if err := s.expect(CreditCard, 0); err != nil {
		return err
	}
	s.echo("Applicant details confirmed ✓")
	if err := s.advance(0); err != nil {
		return err
	}
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Consent for Credit Bureau Check",
			Subtitle: "We will fetch your credit information from CIBIL/Experian to determine eligibility",
			Items: []Field{
				{Label: "Purpose", Value: "Credit card eligibility & limit assessment"},
				{Label: "Impact on score", Value: "Soft check for pre-approval, hard pull on final submission"},
				{Label: "Data usage", Value: "Used only for this application"},
			},
		},
		Actions: []Action{{Label: "I Consent", ID: ActConsentBureau, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) consentBureau(ctx context.Context, _ Request) error {
	if err := s.expect(CreditCard, 1); err != nil {
		return err
	}
	s.echo("I consent to credit bureau check ✓")
	if err := s.think(ctx, []string{
		"Fetching bureau report...",
		"Computing eligibility & pre-approved limit...",
		"Eligibility ready",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(1); err != nil {
		return err
	}
	s.say("You're pre-approved! Here are your best-matched cards:")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindJourneyStep,
		Payload: cardOffer("Matched to your "+s.opts.Profile.Income()+" income", ActSelectCreditCardOffer),
	})
	return s.advance(2)
}

func (s *Session) selectCreditCardOffer(ctx context.Context, req Request) error {
	if err := s.expect(CreditCard, 3); err != nil {
		return err
	}
	card, err := requireOption(req.Value, cardNames())
	if err != nil {
		return err
	}
	status, err := s.kycStatus(ctx, req)
	if err != nil {
		return err
	}
	s.echo("Apply for " + card)
	s.setVars(func(v *Vars) { v.SelectedCard = card })
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(3); err != nil {
		return err
	}

	if status == KYCFull {
		s.say("Your KYC is already complete. We can skip to delivery address confirmation.")
		if err := s.pause(ctx, 400*time.Millisecond); err != nil {
			return err
		}
		if err := s.advance(4); err != nil {
			return err
		}
		s.deliveryPrompt("Please confirm your card delivery address:")
		return nil
	}

	s.say("I'll complete a quick e-KYC via Aadhaar OTP to proceed.")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInfoCard,
		Payload: otpCard("Aadhaar e-KYC", "Enter the 6-digit OTP sent to your Aadhaar-linked mobile", "cc-aadhaar-otp"),
		Actions: []Action{{Label: "Verify OTP", ID: ActVerifyCCAadhaarOTP, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyCCAadhaarOTP(ctx context.Context, req Request) error {
	if err := s.expect(CreditCard, 4); err != nil {
		return err
	}
	otp, err := ValidateOTP(req.Value)
	if err != nil {
		return err
	}
	s.echo(otp)
	if err := s.advance(4); err != nil {
		return err
	}
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.say("KYC verified successfully. Please confirm your delivery address:")
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.deliveryPrompt("We've pre-filled your address from your profile. You can edit it anytime in the app:")
	return nil
}

func (s *Session) deliveryPrompt(text string) {
	p := s.opts.Profile
	s.emit(Message{
		Kind: KindInteractive,
		Text: text,
		Payload: FieldList{Fields: []Field{
			{Label: "Delivery Address", Value: p.Address, Editable: true},
			{Label: "Contact Number", Value: p.Phone, Verified: true},
		}},
		Actions: []Action{{Label: "Confirm delivery address", ID: ActConfirmDeliveryAddress, Style: StylePrimary}},
	})
}

func (s *Session) confirmDeliveryAddress(ctx context.Context, _ Request) error {
	if err := s.expect(CreditCard, 5); err != nil {
		return err
	}
	s.echo("Address confirmed ✓")
	if err := s.advance(5); err != nil {
		return err
	}
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Set up Autopay for monthly bill",
			Subtitle: "Avoid late fees by auto-debiting your credit card bill every month",
			Items: []Field{
				{Label: "Recommended", Value: salaryAccountName + " Autopay"},
				{Label: "Alternative", Value: "UPI Autopay (e-mandate)"},
			},
		},
		Actions: []Action{
			{Label: "Use Kotak811 Salary Account", ID: ActSetupAutopaySalary, Style: StyleSecondary},
			{Label: "Use UPI Autopay", ID: ActSetupAutopayUPI, Style: StyleGhost},
		},
	})
	return nil
}

func (s *Session) setupAutopay(ctx context.Context, req Request) error {
	if err := s.expect(CreditCard, 6); err != nil {
		return err
	}
	echo, method := "Use Kotak811 Salary Account for autopay", salaryAccountName
	if req.Action == ActSetupAutopayUPI {
		echo, method = "Use UPI Autopay", "UPI Autopay"
	}
	s.echo(echo)
	s.setVars(func(v *Vars) { v.Autopay = method })
	if err := s.think(ctx, []string{
		"Setting up autopay mandate...",
		"Mandate verified",
		"Linking payment method...",
	}, 1000*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(6); err != nil {
		return err
	}
	s.say("Autopay is linked. Ready to submit your application:")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title: "Submit Credit Card Application",
			Fields: []Field{
				{Label: "Card", Value: s.getVars().SelectedCard, Verified: true},
				{Label: "Autopay Method", Value: method, Verified: true},
				{Label: "Statement Preference", Value: "Email", Verified: true},
				{Label: "Delivery Address", Value: s.opts.Profile.Address, Verified: true},
			},
			Action: ActConfirmCCApplication,
		},
	})
	return nil
}

func (s *Session) confirmCCApplication(ctx context.Context, _ Request) error {
	if err := s.expect(CreditCard, 7); err != nil {
		return err
	}
	s.echo("Application details confirmed ✓")
	if err := s.think(ctx, []string{
		"Processing credit card application...",
		"Credit check completed",
		"Application submitted",
	}, 1500*time.Millisecond); err != nil {
		return err
	}
	if err := s.complete(7); err != nil {
		return err
	}
	s.finish()
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Credit Card Application Submitted!",
			Reference: s.ref(RefCreditCard),
			Details: []string{
				"Card: " + s.getVars().SelectedCard,
				"Status: Pre-approved - Under final review",
				"Expected approval: 2-3 business days",
				"Card delivery: 5-7 days post approval",
			},
			NextSteps: []string{
				"Instant approval notification via SMS",
				"Virtual card available immediately",
				"Physical card delivered to registered address",
				"Activate via mobile app or SMS",
			},
		},
	})
	return nil
}
