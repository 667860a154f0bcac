package journey

import "context"

type handlerFunc func(ctx context.Context, req Request) error

// handlerFor maps an action to its handler. Every ActionID has a case;
// unknown ids return nil.
func (s *Session) handlerFor(a ActionID) handlerFunc {
	switch a {
	case ActVerifyMobileOTP:
		return s.verifyMobileOTP
	case ActVerifyPAN:
		return s.verifyPAN
	case ActVerifyPANAadhaar:
		return s.verifyPANAadhaar
	case ActVerifyAadhaarOTP:
		return s.verifyAadhaarOTP
	case ActScheduleVKYCSlot1, ActScheduleVKYCSlot2, ActScheduleVKYCLater:
		return s.scheduleVKYC
	case ActConfirmPreferences:
		return s.confirmPreferences
	case ActAddCalendar:
		return s.addCalendar

	case ActConfirmPLApplicant:
		return s.confirmPLApplicant
	case ActConsentPLBureau:
		return s.consentPLBureau
	case ActSelectLoan:
		return s.selectLoan
	case ActVerifyPLAadhaarOTP:
		return s.verifyPLAadhaarOTP
	case ActConfirmPLDisbursal:
		return s.confirmPLDisbursal
	case ActSetupPLEnachBank, ActSetupPLEnachUPI:
		return s.setupPLEnach
	case ActConfirmPLSubmit:
		return s.confirmPLSubmit

	case ActConfirmApplicant:
		return s.confirmApplicant
	case ActConsentBureau:
		return s.consentBureau
	case ActSelectCreditCardOffer:
		return s.selectCreditCardOffer
	case ActVerifyCCAadhaarOTP:
		return s.verifyCCAadhaarOTP
	case ActConfirmDeliveryAddress:
		return s.confirmDeliveryAddress
	case ActSetupAutopaySalary, ActSetupAutopayUPI:
		return s.setupAutopay
	case ActConfirmCCApplication:
		return s.confirmCCApplication

	case ActStartInvestments:
		return s.startInvestments
	case ActStartSIP:
		return s.startSIP
	case ActPurchaseInsurance:
		return s.purchaseInsurance
	case ActConfirmHealth:
		return s.confirmHealth

	case ActRequestSalaryAccount:
		return s.requestSalaryAccount
	case ActViewCreditOffers:
		return s.viewCreditOffers
	case ActEmailDetails:
		return s.emailDetails
	case ActActivateVCard:
		return s.activateVCard
	case ActVerifyCardDetails:
		return s.verifyCardDetails
	case ActVerifyCardOTP:
		return s.verifyCardOTP
	case ActFinalizeCard:
		return s.finalizeCard
	case ActSelectCard:
		return s.selectCard
	case ActConfirmCardDetails:
		return s.confirmCardDetails
	case ActViewCardApp:
		return s.viewCardApp
	case ActManageCard:
		return s.manageCard
	default:
		return nil
	}
}
