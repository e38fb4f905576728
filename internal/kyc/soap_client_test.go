package kyc

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/config"
	"lending-engine/internal/infrastructure/logging"
	"lending-engine/internal/pkg/apperrors"
)

const customerResponseXML = `<?xml version="1.0" encoding="UTF-8"?>
<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Header/>
  <SOAP-ENV:Body>
    <ns2:CustomerResponse xmlns:ns2="http://credable.io/customer">
      <ns2:id>7</ns2:id>
      <ns2:customerNumber>234774784</ns2:customerNumber>
      <ns2:firstName>FirstName234774784</ns2:firstName>
      <ns2:lastName>LastName234774784</ns2:lastName>
      <ns2:phoneNumber>+254700000000</ns2:phoneNumber>
      <ns2:idNumber>20456789</ns2:idNumber>
      <ns2:dateOfBirth>1988-04-12</ns2:dateOfBirth>
      <ns2:country>Kenya</ns2:country>
      <ns2:registrationDate>2023-06-01</ns2:registrationDate>
    </ns2:CustomerResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

const faultXML = `<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Body>
    <SOAP-ENV:Fault>
      <faultcode>SOAP-ENV:Server</faultcode>
      <faultstring>Customer not found</faultstring>
    </SOAP-ENV:Fault>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`

func newTestClient(url string) *SOAPClient {
	return NewSOAPClient(config.KYCConfig{URL: url, Username: "admin", Password: "pwd123", Timeout: time.Second}, logging.Discard())
}

func TestSOAPClient_FetchIdentity(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "text/xml;charset=UTF-8", r.Header.Get("Content-Type"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = io.WriteString(w, customerResponseXML)
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).FetchIdentity(context.Background(), "234774784")
	require.NoError(t, err)

	assert.Equal(t, "7", p.ID)
	assert.Equal(t, "FirstName234774784", p.FirstName)
	assert.Equal(t, "Kenya", p.Country)
	assert.False(t, p.Synthetic)

	assert.Contains(t, gotBody, "<wsse:Username>admin</wsse:Username>")
	assert.Contains(t, gotBody, "<wsse:Password>pwd123</wsse:Password>")
	assert.Contains(t, gotBody, "<cus:customerNumber>234774784</cus:customerNumber>")
	assert.Contains(t, gotBody, `xmlns:cus="http://credable.io/customer"`)
}

func TestSOAPClient_Fault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, faultXML)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchIdentity(context.Background(), "234774784")

	assert.ErrorIs(t, err, apperrors.ErrIdentityUnavailable)
	assert.ErrorContains(t, err, "Customer not found")
}

func TestSOAPClient_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>gateway</html")
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchIdentity(context.Background(), "234774784")

	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
}

func TestSOAPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).FetchIdentity(context.Background(), "234774784")

	assert.ErrorIs(t, err, apperrors.ErrIdentityUnavailable)
}

func TestSyntheticProfile_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	a := SyntheticProfile("234774784", now)
	b := SyntheticProfile("234774784", now)
	other := SyntheticProfile("318411216", now)

	assert.Equal(t, a, b)
	assert.True(t, a.Synthetic)
	assert.Equal(t, "Kenya", a.Country)
	assert.Contains(t, firstNames, a.FirstName)
	assert.Contains(t, lastNames, a.LastName)
	assert.Contains(t, cities, a.City)
	assert.Regexp(t, `^\+254[0-9]+$`, a.PhoneNumber)
	assert.Regexp(t, `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`, a.DateOfBirth)
	assert.NotEqual(t, a.IDNumber, other.IDNumber)
}
