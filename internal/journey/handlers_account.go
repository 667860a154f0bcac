package journey

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

func (s *Session) requestSalaryAccount(ctx context.Context, _ Request) error {
	p := s.opts.Profile
	s.echo("Request HR to make this salary account")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Sending request to HR department...",
		"Request submitted successfully",
	}, 1200*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Salary Account Request Sent",
			Reference: s.ref(RefSalaryAccount),
			Details: []string{
				"Request sent to: " + p.Company + " HR",
				"Status: Pending approval",
				"Expected time: 24-48 hours",
				"Notification: Via email & SMS",
			},
			NextSteps: []string{
				"HR will review your request",
				"Approval notification via email",
				"Account upgraded automatically",
				"Benefits active immediately",
			},
		},
	})
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.say("Great! I've sent the request to your HR department. Once approved, your account will be upgraded to a salary account with premium benefits including zero balance requirement and unlimited free transactions.")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindJourneyStep,
		Text:    "Salary account holders can also apply instantly for one of these cards:",
		Payload: cardOffer("Instant approval for salary accounts", ActSelectCard),
	})
	return nil
}

// viewCreditOffers enters the credit card journey at card selection. The
// applicant details and bureau check were covered by account opening.
func (s *Session) viewCreditOffers(ctx context.Context, _ Request) error {
	s.echo("View credit card offers")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Fetching pre-approved offers...",
		"Analyzing your profile...",
		"Offers ready!",
	}, 1200*time.Millisecond); err != nil {
		return err
	}
	if err := s.enterAt(CreditCard, 3); err != nil {
		return err
	}
	s.say("Excellent! Based on your profile, you're pre-approved for these premium credit cards:")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindJourneyStep,
		Payload: cardOffer("Special offers for new customers", ActSelectCreditCardOffer),
	})
	return nil
}

func (s *Session) selectCard(ctx context.Context, req Request) error {
	card, err := requireOption(req.Value, cardNames())
	if err != nil {
		return err
	}
	p := s.opts.Profile
	s.echo("Selected: " + card)
	s.setVars(func(v *Vars) { v.SelectedCard = card })
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.say("Verify application details:")
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindConfirmation,
		Payload: FieldList{
			Title: "Confirm Application Details",
			Fields: []Field{
				{Label: "Card", Value: card, Verified: true},
				{Label: "Full Name", Value: p.Name, Verified: true},
				{Label: "PAN Number", Value: p.PAN, Verified: true},
				{Label: "Annual Income", Value: p.Income(), Verified: true},
				{Label: "Employment", Value: p.Company, Verified: true},
				{Label: "Email", Value: p.Email, Verified: true},
				{Label: "Mobile", Value: p.Phone, Verified: true},
			},
			Action: ActConfirmCardDetails,
		},
	})
	return nil
}

func (s *Session) confirmCardDetails(ctx context.Context, _ Request) error {
	s.echo("Application details confirmed ✓")
	if err := s.think(ctx, []string{
		"Processing application...",
		"Credit check done",
		"Submitting...",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	card := cardByName(s.getVars().SelectedCard)
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:     "Application Submitted Successfully!",
			Reference: s.ref(RefCreditCard),
			Details: []string{
				"Status: Under Review",
				"Card: " + card.Name,
				"Limit: " + card.Limit + " (subject to approval)",
				"Approval: 3-5 business days",
			},
			NextSteps: []string{
				"Credit check in progress",
				"Updates via SMS & email",
				"Virtual card on approval, physical in 7-10 days",
			},
		},
	})
	return nil
}

func (s *Session) emailDetails(ctx context.Context, _ Request) error {
	s.echo("Email me the details")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Composing email with account details...",
		"Email sent successfully!",
	}, 1200*time.Millisecond); err != nil {
		return err
	}
	s.say(fmt.Sprintf("Account details sent to %s.", s.opts.Profile.Email))
	return nil
}

func (s *Session) activateVCard(ctx context.Context, _ Request) error {
	card := s.getVars().VirtualCard
	if card == "" {
		card = fmt.Sprintf("4532%012d", rand.Int64N(1_000_000_000_000))
		s.setVars(func(v *Vars) { v.VirtualCard = card })
	}
	s.echo("Activate virtual card")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.say("Let's activate your virtual debit card. For security, I need to verify a few details first.")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInteractive,
		Text: "Your virtual card has been generated. Please verify the last 4 digits:",
		Payload: FieldList{Fields: []Field{
			{Label: "Card Number", Value: maskCard(card), Verified: true},
			{Label: "Card Type", Value: "Kotak811 Visa Debit", Verified: true},
			{Label: "Valid Until", Value: "12/2028", Verified: true},
			{Label: "Last 4 Digits", Value: card[len(card)-4:], Verified: true},
		}},
		Actions: []Action{{Label: "Verify & Continue", ID: ActVerifyCardDetails, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyCardDetails(ctx context.Context, _ Request) error {
	p := s.opts.Profile
	s.echo("Card verified ✓")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.say("Great! Now let's set up your card security. I'll send an OTP to your registered mobile.")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInfoCard,
		Payload: otpCard("Card activation OTP", "Enter the 6-digit code sent to "+p.Phone, "card-otp"),
		Actions: []Action{{Label: "Verify OTP & Continue", ID: ActVerifyCardOTP, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyCardOTP(ctx context.Context, req Request) error {
	otp, err := ValidateOTP(req.Value)
	if err != nil {
		return err
	}
	s.echo(otp + " ✓")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.say("Perfect! Now set transaction limits for your virtual card:")
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInteractive,
		Text:    "You can customize these limits anytime in the app:",
		Payload: FieldList{Fields: cardLimits()},
		Actions: []Action{{Label: "Accept & Activate Card", ID: ActFinalizeCard, Style: StylePrimary}},
	})
	return nil
}

func cardLimits() []Field {
	return []Field{
		{Label: "Daily Online Limit", Value: "₹50,000", Editable: true},
		{Label: "Per Transaction Limit", Value: "₹25,000", Editable: true},
		{Label: "International Usage", Value: "Disabled (Enable in app)", Verified: true},
		{Label: "Contactless Payment", Value: "Enabled", Verified: true},
	}
}

func (s *Session) finalizeCard(ctx context.Context, _ Request) error {
	card := s.getVars().VirtualCard
	s.echo("Limits confirmed ✓")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Activating your virtual debit card...",
		"Setting up security protocols...",
		"Configuring transaction limits...",
		"Card activated successfully!",
	}, 2000*time.Millisecond); err != nil {
		return err
	}
	s.say("Your virtual debit card is now active and ready for online transactions!")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Virtual Card Active",
			Subtitle: "Use for online payments immediately",
			Items: []Field{
				{Label: "Card Number", Value: maskCard(card)},
				{Label: "Card Type", Value: "Visa Debit"},
				{Label: "Valid Until", Value: "12/2028"},
				{Label: "CVV", Value: "View in app"},
				{Label: "Daily Limit", Value: "₹50,000"},
				{Label: "Status", Value: "Active ✓"},
			},
		},
		Actions: []Action{
			{Label: "View Full Card Details", ID: ActViewCardApp, Style: StylePrimary},
			{Label: "Manage Card Settings", ID: ActManageCard, Style: StyleSecondary},
		},
	})
	return nil
}

func (s *Session) viewCardApp(ctx context.Context, _ Request) error {
	s.echo("View full card details")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.say("Full card details, including the CVV, are available in the Kotak811 app under Cards > Virtual Debit Card.")
	return nil
}

func (s *Session) manageCard(ctx context.Context, _ Request) error {
	s.echo("Manage card settings")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInteractive,
		Text:    "Here are your current card settings. Change any of them in the Kotak811 app:",
		Payload: FieldList{Fields: cardLimits()},
	})
	return nil
}
