package journey

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

var vkycSlots = map[ActionID]string{
	ActScheduleVKYCSlot1: "Today 2:00 PM",
	ActScheduleVKYCSlot2: "Today 4:00 PM",
	ActScheduleVKYCLater: "Later",
}

func (s *Session) startBankAccount(ctx context.Context) error {
	p := s.opts.Profile
	if err := s.think(ctx, []string{
		"Checking your employee profile...",
		"Mobile number linked to profile",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	s.say(fmt.Sprintf("Verifying your mobile number %s. Sending code...", p.Phone))
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInfoCard,
		Payload: otpCard("OTP sent to your mobile", "Enter the 6-digit code sent to "+p.Phone, "mobile-otp"),
		Actions: []Action{{Label: "Verify OTP", ID: ActVerifyMobileOTP, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyMobileOTP(ctx context.Context, req Request) error {
	if err := s.expect(BankAccount, 0); err != nil {
		return err
	}
	otp, err := ValidateOTP(req.Value)
	if err != nil {
		return err
	}
	p := s.opts.Profile
	s.echo(otp)
	if err := s.advance(0); err != nil {
		return err
	}
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.say("Mobile verified successfully! Next, let's verify your PAN.")
	if err := s.pause(ctx, 800*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInteractive,
		Text: "Please confirm your PAN details:",
		Payload: FieldList{Fields: []Field{
			{Label: "PAN Number", Value: p.PAN, Verified: true},
			{Label: "Name", Value: p.Name, Verified: true},
		}},
		Actions: []Action{{Label: "Verify PAN", ID: ActVerifyPAN, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyPAN(ctx context.Context, _ Request) error {
	if err := s.expect(BankAccount, 1); err != nil {
		return err
	}
	p := s.opts.Profile
	s.echo("PAN details confirmed ✓")
	if err := s.think(ctx, []string{
		"Validating PAN with NSDL...",
		"PAN linked to your profile confirmed",
	}, 800*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(1); err != nil {
		return err
	}
	s.say("PAN verified. Now let's complete Aadhaar eKYC.")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInteractive,
		Text: "I've pre-filled your details from our records. Please verify:",
		Payload: FieldList{Fields: []Field{
			{Label: "Aadhaar Number", Value: p.Aadhaar, Editable: true},
			{Label: "Date of Birth", Value: p.DOB, Verified: true},
			{Label: "Name as per Aadhaar", Value: p.Name, Verified: true},
		}},
		Actions: []Action{{Label: "Start Aadhaar eKYC", ID: ActVerifyPANAadhaar, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyPANAadhaar(ctx context.Context, _ Request) error {
	if err := s.expect(BankAccount, 2); err != nil {
		return err
	}
	s.echo("Confirmed")
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Connecting to UIDAI...",
		"Initiating Aadhaar eKYC...",
		"Sending OTP to Aadhaar-linked mobile...",
	}, 1500*time.Millisecond); err != nil {
		return err
	}
	s.say("Perfect! I'm sending an OTP to your Aadhaar-linked mobile number for eKYC verification.")
	if err := s.pause(ctx, 700*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind:    KindInfoCard,
		Payload: otpCard("OTP sent to Aadhaar-linked number", "Enter the 6-digit code sent to "+s.opts.Profile.MaskedPhone(), "aadhaar-otp"),
		Actions: []Action{{Label: "Verify OTP", ID: ActVerifyAadhaarOTP, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) verifyAadhaarOTP(ctx context.Context, req Request) error {
	if err := s.expect(BankAccount, 2); err != nil {
		return err
	}
	otp, err := ValidateOTP(req.Value)
	if err != nil {
		return err
	}
	p := s.opts.Profile
	s.echo(otp)
	if err := s.think(ctx, []string{
		"Validating Aadhaar OTP...",
		"e-KYC data retrieved successfully",
		"Address and identity confirmed",
	}, 1500*time.Millisecond); err != nil {
		return err
	}
	if err := s.advance(2); err != nil {
		return err
	}
	s.say("Excellent! Your Aadhaar eKYC is complete. Here's what we verified:")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInteractive,
		Text: "Address from Aadhaar:\n" + p.Address,
		Payload: FieldList{Fields: []Field{
			{Label: "Name", Value: p.Name, Verified: true},
			{Label: "Date of Birth", Value: p.DOB, Verified: true},
			{Label: "Address", Value: p.Address, Verified: true},
			{Label: "Aadhaar", Value: p.Aadhaar, Verified: true},
		}},
	})
	if err := s.pause(ctx, 800*time.Millisecond); err != nil {
		return err
	}
	s.say("Now, let's schedule your Video KYC to upgrade to a full-access account. This is a quick 5-7 minute video call.")
	if err := s.pause(ctx, 700*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Video KYC Scheduling",
			Subtitle: "Required for full account access & higher limits",
			Items: []Field{
				{Label: "Duration", Value: "5-7 minutes"},
				{Label: "Documents needed", Value: "PAN & Aadhaar"},
				{Label: "Process", Value: "Live signature + Liveness check"},
				{Label: "Security", Value: "Encrypted & Recorded"},
			},
		},
		Actions: []Action{
			{Label: vkycSlots[ActScheduleVKYCSlot1], ID: ActScheduleVKYCSlot1, Style: StylePrimary},
			{Label: vkycSlots[ActScheduleVKYCSlot2], ID: ActScheduleVKYCSlot2, Style: StyleSecondary},
			{Label: "Choose Another Time", ID: ActScheduleVKYCLater, Style: StyleGhost},
		},
	})
	return nil
}

func (s *Session) scheduleVKYC(ctx context.Context, req Request) error {
	if err := s.expect(BankAccount, 3); err != nil {
		return err
	}
	slot := vkycSlots[req.Action]
	p := s.opts.Profile
	s.echo(slot)
	s.setVars(func(v *Vars) { v.VKYCSlot = slot })
	if err := s.advance(3); err != nil {
		return err
	}
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if req.Action == ActScheduleVKYCLater {
		s.say("No problem. We'll send you a link to pick a Video KYC slot that suits you.")
	} else {
		s.say(fmt.Sprintf("Perfect! Video KYC scheduled for %s. You'll get a reminder 15 minutes before.", slot))
	}
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Video KYC Confirmed",
			Subtitle: "Scheduled for " + slot,
			Items: []Field{
				{Label: "Reminder", Value: "15 mins before via SMS"},
				{Label: "Duration", Value: "5-7 minutes"},
			},
		},
		Actions: []Action{{Label: "Add to Calendar", ID: ActAddCalendar, Style: StyleSecondary}},
	})
	if err := s.pause(ctx, 700*time.Millisecond); err != nil {
		return err
	}
	s.say("Great! Let me show you a summary of your account details before we proceed:")
	if err := s.pause(ctx, 500*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Account Setup Summary",
			Subtitle: "Please review your information",
			Items: []Field{
				{Label: "Full Name", Value: p.Name},
				{Label: "PAN Number", Value: p.PAN},
				{Label: "Aadhaar", Value: p.Aadhaar},
				{Label: "Date of Birth", Value: p.DOB},
				{Label: "Mobile Number", Value: p.Phone},
				{Label: "Email", Value: p.Email},
				{Label: "Delivery Address", Value: p.Address},
				{Label: "Account Type", Value: "Savings Account"},
				{Label: "Video KYC", Value: slot},
			},
		},
		Actions: []Action{{Label: "Confirm & Create Account", ID: ActConfirmPreferences, Style: StylePrimary}},
	})
	return nil
}

func (s *Session) addCalendar(ctx context.Context, _ Request) error {
	slot := s.getVars().VKYCSlot
	s.echo("Add to calendar")
	if err := s.pause(ctx, 300*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindDocument,
		Text: "Here's your calendar invite.",
		Payload: Document{
			Title:    "Video KYC call",
			Filename: "video-kyc.ics",
			MimeType: "text/calendar",
			Fields: []Field{
				{Label: "When", Value: slot},
				{Label: "Duration", Value: "5-7 minutes"},
				{Label: "Bring", Value: "PAN & Aadhaar"},
			},
		},
	})
	return nil
}

func (s *Session) confirmPreferences(ctx context.Context, _ Request) error {
	if err := s.expect(BankAccount, 4); err != nil {
		return err
	}
	p := s.opts.Profile
	s.echo("Confirmed")
	if err := s.advance(4); err != nil {
		return err
	}
	if err := s.pause(ctx, 400*time.Millisecond); err != nil {
		return err
	}
	if err := s.think(ctx, []string{
		"Creating your Kotak811 account...",
		"Generating virtual debit card...",
		"Setting up UPI...",
		"Preparing account details...",
		"Account activated successfully!",
	}, 2500*time.Millisecond); err != nil {
		return err
	}
	if err := s.complete(5); err != nil {
		return err
	}

	account := fmt.Sprintf("50100%07d", rand.IntN(10_000_000))
	card := fmt.Sprintf("4532%012d", rand.Int64N(1_000_000_000_000))
	s.setVars(func(v *Vars) {
		v.AccountNumber = account
		v.VirtualCard = card
	})
	s.emit(Message{
		Kind: KindSuccess,
		Payload: Success{
			Title:         "Your Kotak811 Account is Live!",
			Reference:     s.ref(RefAccount),
			AccountNumber: account,
			Details: []string{
				"Account Number: " + account,
				"IFSC Code: " + salaryAccountIFSC,
				"Branch: MG Road, Bangalore",
				"Account Type: Savings Account",
				"Virtual Card: " + maskCard(card),
				"UPI ID: " + upiHandle(p),
				"Min Balance: ₹10,000 (MAB)",
				"Welcome Bonus: ₹500 on first txn",
			},
			NextSteps: []string{
				"Video KYC scheduled - Complete for full access",
				"Physical debit card arriving in 7-10 days",
				"Virtual card active - Use now!",
				"Start transacting via UPI, IMPS, NEFT",
			},
		},
	})
	s.finish()

	if err := s.pause(ctx, 800*time.Millisecond); err != nil {
		return err
	}
	s.say("Congratulations! Your account is ready. Here's what you can do next:")
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Your virtual debit card",
			Subtitle: maskCard(card),
		},
		Actions: []Action{
			{Label: "Activate virtual card", ID: ActActivateVCard, Style: StylePrimary},
			{Label: "Email me the details", ID: ActEmailDetails, Style: StyleGhost},
		},
	})
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Upgrade to Salary Account",
			Subtitle: "Get premium benefits with zero balance requirement",
			Items: []Field{
				{Label: "Min Balance", Value: "₹0 (No MAB)"},
				{Label: "Free Transactions", Value: "Unlimited"},
				{Label: "Premium Benefits", Value: "Higher limits & rewards"},
				{Label: "Setup Time", Value: "Instant with HR approval"},
			},
		},
		Actions: []Action{{Label: "Request HR to Make This Salary Account", ID: ActRequestSalaryAccount, Style: StylePrimary}},
	})
	if err := s.pause(ctx, 600*time.Millisecond); err != nil {
		return err
	}
	s.emit(Message{
		Kind: KindInfoCard,
		Payload: InfoCard{
			Title:    "Pre-Approved Credit Card Offers",
			Subtitle: "Exclusive offers for new account holders",
		},
		Actions: []Action{{Label: "View Credit Card Offers", ID: ActViewCreditOffers, Style: StylePrimary}},
	})
	return nil
}

func maskCard(number string) string {
	if len(number) < 8 {
		return number
	}
	return number[:4] + " XXXX XXXX " + number[len(number)-4:]
}

func upiHandle(p Profile) string {
	return strings.ToLower(p.FirstName()) + "@kotak811"
}
