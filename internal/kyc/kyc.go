// Package kyc looks up customer identity data from the KYC service.
package kyc

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Profile is the identity record returned by the KYC service.
type Profile struct {
	ID               string `json:"id"`
	CustomerNumber   string `json:"customerNumber"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	PhoneNumber      string `json:"phoneNumber"`
	EmailAddress     string `json:"emailAddress,omitempty"`
	IDNumber         string `json:"idNumber"`
	DateOfBirth      string `json:"dateOfBirth"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country"`
	RegistrationDate string `json:"registrationDate"`
	Synthetic        bool   `json:"synthetic"`
}

type IdentityLookup interface {
	FetchIdentity(ctx context.Context, customerNumber string) (*Profile, error)
}

var (
	firstNames = []string{"John", "Sarah", "Michael", "Emma", "David"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones"}
	cities     = []string{"Nairobi", "Mombasa", "Kisumu", "Nakuru", "Eldoret"}
)

const dateLayout = "2006-01-02"

// SyntheticProfile derives a stable placeholder identity from the customer
// number. The same number always yields the same person; only the
// registration date moves with now.
func SyntheticProfile(customerNumber string, now time.Time) *Profile {
	h := hashCustomerNumber(customerNumber)
	digits := strconv.FormatInt(h, 10)

	first := firstNames[h%int64(len(firstNames))]
	last := lastNames[(h*2)%int64(len(lastNames))]
	city := cities[(h*3)%int64(len(cities))]
	dob := time.Date(1970+int(h%40), time.Month((h*4)%12+1), int((h*5)%28)+1, 0, 0, 0, 0, time.UTC)

	return &Profile{
		ID:               "ID" + prefix(digits, 8),
		CustomerNumber:   customerNumber,
		FirstName:        first,
		LastName:         last,
		PhoneNumber:      "+254" + prefix(digits, 9),
		EmailAddress:     fmt.Sprintf("%s.%s@example.com", strings.ToLower(first), strings.ToLower(last)),
		IDNumber:         prefix(digits, 8),
		DateOfBirth:      dob.Format(dateLayout),
		Address:          fmt.Sprintf("%d Main Street", (h*6)%1000),
		City:             city,
		Country:          "Kenya",
		RegistrationDate: now.AddDate(0, -int(h%24), 0).Format(dateLayout),
		Synthetic:        true,
	}
}

// hashCustomerNumber is a 31-multiplier rolling hash truncated to 32 bits,
// returned as an absolute value.
func hashCustomerNumber(s string) int64 {
	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
