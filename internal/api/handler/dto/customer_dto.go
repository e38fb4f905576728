package dto

import "lending-engine/internal/kyc"

type SubscriptionResponse struct {
	CustomerNumber string       `json:"customerNumber"`
	Subscribed     bool         `json:"subscribed"`
	Profile        *kyc.Profile `json:"profile,omitempty"`
}

type ActiveLoanResponse struct {
	CustomerNumber string `json:"customerNumber"`
	HasActiveLoan  bool   `json:"hasActiveLoan"`
}
