package kyc

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lending-engine/internal/config"
	"lending-engine/internal/pkg/apperrors"
)

const (
	nsSOAPEnvelope = "http://schemas.xmlsoap.org/soap/envelope/"
	nsCustomer     = "http://credable.io/customer"
	nsWSSecurity   = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-secext-1.0.xsd"
)

type requestEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	SoapEnv string   `xml:"xmlns:soapenv,attr"`
	Cus     string   `xml:"xmlns:cus,attr"`
	Header  struct {
		Security wsSecurity `xml:"wsse:Security"`
	} `xml:"soapenv:Header"`
	CustomerNumber string `xml:"soapenv:Body>cus:CustomerRequest>cus:customerNumber"`
}

type wsSecurity struct {
	Wsse     string `xml:"xmlns:wsse,attr"`
	Username string `xml:"wsse:UsernameToken>wsse:Username"`
	Password string `xml:"wsse:UsernameToken>wsse:Password"`
}

type responseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
		Customer *customerResponse `xml:"CustomerResponse"`
	} `xml:"Body"`
}

type customerResponse struct {
	ID               string `xml:"id"`
	CustomerNumber   string `xml:"customerNumber"`
	FirstName        string `xml:"firstName"`
	LastName         string `xml:"lastName"`
	PhoneNumber      string `xml:"phoneNumber"`
	EmailAddress     string `xml:"emailAddress"`
	IDNumber         string `xml:"idNumber"`
	DateOfBirth      string `xml:"dateOfBirth"`
	Address          string `xml:"address"`
	City             string `xml:"city"`
	Country          string `xml:"country"`
	RegistrationDate string `xml:"registrationDate"`
}

// SOAPClient implements IdentityLookup against the customer WSDL endpoint.
type SOAPClient struct {
	url        string
	username   string
	password   string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ IdentityLookup = (*SOAPClient)(nil)

func NewSOAPClient(cfg config.KYCConfig, logger *slog.Logger) *SOAPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SOAPClient{
		url:        cfg.URL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "KYCSOAPClient"),
	}
}

func (c *SOAPClient) FetchIdentity(ctx context.Context, customerNumber string) (*Profile, error) {
	body, err := c.envelope(customerNumber)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build KYC request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml;charset=UTF-8")
	req.Header.Set("SOAPAction", "")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "KYC call failed", slog.String("customerNumber", customerNumber), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIdentityUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read KYC response: %v", apperrors.ErrIdentityUnavailable, err)
	}

	var env responseEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed KYC response: %v", apperrors.ErrInvalidResponse, err)
	}
	if env.Body.Fault != nil {
		return nil, fmt.Errorf("%w: KYC fault %s: %s", apperrors.ErrIdentityUnavailable,
			strings.TrimSpace(env.Body.Fault.Code), strings.TrimSpace(env.Body.Fault.String))
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: KYC service returned %s", apperrors.ErrIdentityUnavailable, res.Status)
	}
	if env.Body.Customer == nil {
		return nil, fmt.Errorf("%w: KYC response has no customer", apperrors.ErrInvalidResponse)
	}

	cr := env.Body.Customer
	p := &Profile{
		ID:               cr.ID,
		CustomerNumber:   cr.CustomerNumber,
		FirstName:        cr.FirstName,
		LastName:         cr.LastName,
		PhoneNumber:      cr.PhoneNumber,
		EmailAddress:     cr.EmailAddress,
		IDNumber:         cr.IDNumber,
		DateOfBirth:      cr.DateOfBirth,
		Address:          cr.Address,
		City:             cr.City,
		Country:          cr.Country,
		RegistrationDate: cr.RegistrationDate,
	}
	if p.CustomerNumber == "" {
		p.CustomerNumber = customerNumber
	}

	c.logger.DebugContext(ctx, "Fetched KYC profile", slog.String("customerNumber", customerNumber))
	return p, nil
}

func (c *SOAPClient) envelope(customerNumber string) ([]byte, error) {
	env := requestEnvelope{
		SoapEnv:        nsSOAPEnvelope,
		Cus:            nsCustomer,
		CustomerNumber: customerNumber,
	}
	env.Header.Security = wsSecurity{
		Wsse:     nsWSSecurity,
		Username: c.username,
		Password: c.password,
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal KYC envelope: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}
