package journey

import (
	"context"
	"time"
)

func (s *Session) startPersonalLoan(ctx context.Context) error {
	s.setVars(func(v *Vars) {
		v.SelectedLoan = ""
		v.Mandate = ""
	})
	s.say("Before we proceed, please review and confirm your details.")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title:  "Confirm Applicant Details",
			Fields: applicantFields(s.opts.Profile),
			Action: ActConfirmPLApplicant,
		},
	})
	return nil
}

func (s *Session) confirmPLApplicant(ctx context.Context, _ Request) error {
	if err := s.expect(PersonalLoan, 0); err != nil {
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
			Subtitle: "We will fetch your credit information to determine eligibility & rate",
			Items: []Field{
				{Label: "Purpose", Value: "Personal loan eligibility, limit & pricing"},
				{Label: "Impact on score", Value: "Soft check now, hard pull on final submit"},
			},
		},
		Actions: []Action{{Label: "I Consent", ID: ActConsentPLBureau, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) consentPLBureau(ctx context.Context, _ Request) error {
	if err := s.expect(PersonalLoan, 1); err != nil {
		return err
	}
	s.echo("I consent to credit bureau check ✓")
	if err := s.think(ctx, []string{
		"Fetching bureau report...",
		"Computing eligibility & limit...",
		"Offers ready",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(1); err != nil {
		return err
	}
	s.say("You're pre-approved! Choose your loan plan:")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{Kind: KindJourneyStep, Payload: loanOffer})
	return s.advance(2)
}

func (s *Session) selectLoan(ctx context.Context, req Request) error {
	if err := s.expect(PersonalLoan, 3); err != nil {
		return err
	}
	plan, err := requireOption(req.Value, loanLabels())
	if err != nil {
		return err
	}
	status, err := s.kycStatus(ctx, req)
	if err != nil {
		return err
	}
	s.echo("Selected: " + plan)
	s.setVars(func(v *Vars) { v.SelectedLoan = plan })
	if err := s.advance(3); err != nil {
		return err
	}
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}

	if status == KYCFull {
		s.say("Your KYC is already complete. Let's confirm your disbursal account.")
		if err := s.pause(ctx, 300*time.Millisecond); err != nil {
			return err
		}
		if err := s.advance(4); err != nil {
			return err
		}
		s.disbursalPrompt("Confirm your disbursal account:")
		return nil
	}

	s.say("I'll complete a quick e-KYC via Aadhaar OTP to proceed.")
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInfoCard,
		Payload: otpCard("Aadhaar e-KYC", "Enter the 6-digit OTP sent to your Aadhaar-linked mobile", "pl-aadhaar-otp"),
		Actions: []Action{{Label: "Verify OTP", ID: ActVerifyPLAadhaarOTP, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyPLAadhaarOTP(ctx context.Context, req Request) error {
	if err := s.expect(PersonalLoan, 4); err != nil {
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
	s.say("KYC verified successfully. Confirm your disbursal account:")
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.disbursalPrompt("Your salary account is pre-verified for instant disbursal:")
	return nil
}

func (s *Session) disbursalPrompt(text string) {
	s.emit(Message{
		Kind: KindInteractive,
		Text: text,
		Payload: FieldList{Fields: []Field{
			{Label: "Account", Value: salaryAccountName + " (pre-verified)", Verified: true},
			{Label: "IFSC", Value: salaryAccountIFSC, Verified: true},
		}},
		Actions: []Action{{Label: "Use this account for disbursal", ID: ActConfirmPLDisbursal, Style: StylePrimary}},
	})
}

func (s *Session) confirmPLDisbursal(ctx context.Context, _ Request) error {
	if err := s.expect(PersonalLoan, 5); err != nil {
		return err
	}
	s.echo("Use this account for disbursal ✓")
	if err := s.advance(5); err != nil {
		return err
	}
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Set up eNACH (Auto-debit for EMI)",
			Subtitle: "Avoid missed EMIs by setting up auto-debit mandate",
			Items: []Field{
				{Label: "Recommended", Value: salaryAccountName + " eNACH"},
				{Label: "Alternative", Value: "UPI eMandate"},
			},
		},
		Actions: []Action{
			{Label: "Use Salary Account eNACH", ID: ActSetupPLEnachBank, Style: StyleSecondary},
			{Label: "Use UPI eMandate", ID: ActSetupPLEnachUPI, Style: StyleGhost},
		},
	})
	return nil
}

func (s *Session) setupPLEnach(ctx context.Context, req Request) error {
	if err := s.expect(PersonalLoan, 6); err != nil {
		return err
	}
	echo, method := "Use Salary Account eNACH", "Salary Account eNACH"
	if req.Action == ActSetupPLEnachUPI {
		echo, method = "Use UPI eMandate", "UPI eMandate"
	}
	s.echo(echo)
	s.setVars(func(v *Vars) { v.Mandate = method })
	if err := s.think(ctx, []string{
		"Setting up eNACH mandate...",
		"Mandate verified",
		"Linking payment method...",
	}, 1000*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(6); err != nil {
		return err
	}
	plan := s.getVars().SelectedLoan
	if plan == "" {
		plan = "-"
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title: "Submit Personal Loan Application",
			Fields: []Field{
				{Label: "Selected Plan", Value: plan, Verified: true},
				{Label: "eNACH Method", Value: method, Verified: true},
				{Label: "Disbursal Account", Value: salaryAccountName, Verified: true},
			},
			Action: ActConfirmPLSubmit,
		},
	})
	return nil
}

func (s *Session) confirmPLSubmit(ctx context.Context, _ Request) error {
	if err := s.expect(PersonalLoan, 7); err != nil {
		return err
	}
	s.echo("Application submitted with e-sign ✓")
	if err := s.think(ctx, []string{
		"Processing loan application...",
		"Credit rule checks passed",
		"Application submitted",
	}, 1200*time.Millisecond); err != nil {
		return err
	}
	if err := s.complete(7); err != nil {
		return err
	}
	s.finish()
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Personal Loan Application Submitted!",
			Reference: s.ref(RefPersonalLoan),
			Details: []string{
				"Plan: " + s.getVars().SelectedLoan,
				"Status: Pre-approved - Under final review",
				"Expected approval: Same day",
				"Disbursal: Within 24 hours post-approval",
			},
			NextSteps: []string{
				"Approval notification via SMS/email",
				"e-agreement to be shared for e-sign",
				"Funds credited to your chosen account",
			},
		},
	})
	return nil
}
