package journey

import (
	"fmt"
	"strings"

	"github.com/containerd/errdefs"
)

// ActionID identifies a button press the client can send back.
type ActionID string

// Bank account.
const (
	ActVerifyMobileOTP    ActionID = "verify-mobile-otp"
	ActVerifyPAN          ActionID = "verify-pan"
	ActVerifyPANAadhaar   ActionID = "verify-pan-aadhaar"
	ActVerifyAadhaarOTP   ActionID = "verify-aadhaar-otp"
	ActScheduleVKYCSlot1  ActionID = "schedule-vkyc-slot1"
	ActScheduleVKYCSlot2  ActionID = "schedule-vkyc-slot2"
	ActScheduleVKYCLater  ActionID = "schedule-vkyc-later"
	ActConfirmPreferences ActionID = "confirm-preferences"
	ActAddCalendar        ActionID = "add-calendar"
)

// Personal loan.
const (
	ActConfirmPLApplicant ActionID = "confirm-pl-applicant-details"
	ActConsentPLBureau    ActionID = "consent-pl-bureau-pull"
	ActSelectLoan         ActionID = "select-loan"
	ActVerifyPLAadhaarOTP ActionID = "verify-pl-aadhaar-otp"
	ActConfirmPLDisbursal ActionID = "confirm-pl-disbursal-account"
	ActSetupPLEnachBank   ActionID = "setup-pl-enach-account"
	ActSetupPLEnachUPI    ActionID = "setup-pl-enach-upi"
	ActConfirmPLSubmit    ActionID = "confirm-pl-submit"
)

// Credit card.
const (
	ActConfirmApplicant       ActionID = "confirm-applicant-details"
	ActConsentBureau          ActionID = "consent-bureau-pull"
	ActSelectCreditCardOffer  ActionID = "select-credit-card-offer"
	ActVerifyCCAadhaarOTP     ActionID = "verify-cc-aadhaar-otp"
	ActConfirmDeliveryAddress ActionID = "confirm-delivery-address"
	ActSetupAutopaySalary     ActionID = "setup-autopay-salary-account"
	ActSetupAutopayUPI        ActionID = "setup-autopay-upi"
	ActConfirmCCApplication   ActionID = "confirm-credit-card-application"
)

// Advisory journeys.
const (
	ActStartInvestments  ActionID = "start-investments"
	ActStartSIP          ActionID = "start-sip"
	ActPurchaseInsurance ActionID = "purchase-insurance"
	ActConfirmHealth     ActionID = "confirm-health"
)

// Follow-ups offered once an account or card exists.
const (
	ActRequestSalaryAccount ActionID = "request-salary-account"
	ActViewCreditOffers     ActionID = "view-credit-offers"
	ActEmailDetails         ActionID = "email-details"
	ActActivateVCard        ActionID = "activate-vcard"
	ActVerifyCardDetails    ActionID = "verify-card-details"
	ActVerifyCardOTP        ActionID = "verify-card-otp"
	ActFinalizeCard         ActionID = "finalize-card-activation"
	ActSelectCard           ActionID = "select-card"
	ActConfirmCardDetails   ActionID = "confirm-card-details"
	ActViewCardApp          ActionID = "view-card-app"
	ActManageCard           ActionID = "manage-card"
)

var allActions = []ActionID{
	ActVerifyMobileOTP, ActVerifyPAN, ActVerifyPANAadhaar, ActVerifyAadhaarOTP,
	ActScheduleVKYCSlot1, ActScheduleVKYCSlot2, ActScheduleVKYCLater,
	ActConfirmPreferences, ActAddCalendar,

	ActConfirmPLApplicant, ActConsentPLBureau, ActSelectLoan, ActVerifyPLAadhaarOTP,
	ActConfirmPLDisbursal, ActSetupPLEnachBank, ActSetupPLEnachUPI, ActConfirmPLSubmit,

	ActConfirmApplicant, ActConsentBureau, ActSelectCreditCardOffer, ActVerifyCCAadhaarOTP,
	ActConfirmDeliveryAddress, ActSetupAutopaySalary, ActSetupAutopayUPI, ActConfirmCCApplication,

	ActStartInvestments, ActStartSIP, ActPurchaseInsurance, ActConfirmHealth,

	ActRequestSalaryAccount, ActViewCreditOffers, ActEmailDetails, ActActivateVCard,
	ActVerifyCardDetails, ActVerifyCardOTP, ActFinalizeCard, ActSelectCard,
	ActConfirmCardDetails, ActViewCardApp, ActManageCard,
}

// standing actions stay available once offered, until the session resets.
var standingActions = map[ActionID]bool{
	ActAddCalendar:          true,
	ActRequestSalaryAccount: true,
	ActViewCreditOffers:     true,
	ActEmailDetails:         true,
	ActActivateVCard:        true,
	ActViewCardApp:          true,
	ActManageCard:           true,
}

// lane groups the actions of one conversation thread. A prompt only replaces
// the offered actions of its own lane, so a side flow started from a
// standing action leaves the active journey's buttons alone.
type lane int

const (
	laneStanding lane = iota
	laneJourney
	laneVirtualCard
	laneCardApplication
)

func laneOf(a ActionID) lane {
	switch {
	case standingActions[a]:
		return laneStanding
	case a == ActVerifyCardDetails, a == ActVerifyCardOTP, a == ActFinalizeCard:
		return laneVirtualCard
	case a == ActSelectCard, a == ActConfirmCardDetails:
		return laneCardApplication
	default:
		return laneJourney
	}
}

// AllActions returns every action the dispatcher knows.
func AllActions() []ActionID {
	out := make([]ActionID, len(allActions))
	copy(out, allActions)
	return out
}

// ParseAction validates an action id from the wire.
func ParseAction(s string) (ActionID, error) {
	id := ActionID(strings.TrimSpace(s))
	for _, a := range allActions {
		if a == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", errdefs.ErrInvalidArgument, s)
}
