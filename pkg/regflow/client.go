package regflow

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Wire error codes shared by the platform API and this client.
const (
	CodeInvalidEmail         = 2001
	CodeRateLimited          = 2002
	CodeInvalidCode          = 2003
	CodeSessionExpired       = 2004
	CodeQualificationDenied  = 2005
	CodeTokenInvalid         = 2006
	CodeVerificationRequired = 2007
	CodeEventNotFound        = 2008
	CodeRegistrationNotFound = 2009
	CodeTicketCount          = 2010
	CodeValidationFailed     = 2012
)

type apiError struct {
	ErrorCode    int      `json:"error_code"`
	ErrorMessage string   `json:"error_message"`
	Missing      []string `json:"missing,omitempty"`
}

func mapAPIError(status int, e apiError) error {
	switch e.ErrorCode {
	case CodeInvalidEmail:
		return ErrInvalidEmail
	case CodeRateLimited:
		return ErrRateLimited
	case CodeInvalidCode:
		return ErrInvalidCode
	case CodeSessionExpired:
		return ErrSessionExpired
	case CodeQualificationDenied:
		return ErrQualificationDenied
	case CodeTokenInvalid:
		return ErrTokenInvalid
	case CodeVerificationRequired:
		return ErrVerificationRequired
	case CodeTicketCount:
		return ErrTicketCount
	case CodeValidationFailed:
		return &ValidationError{Missing: e.Missing}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrTokenInvalid
	case http.StatusGone:
		return ErrSessionExpired
	}
	return fmt.Errorf("%w: status %d: %s", ErrNetwork, status, e.ErrorMessage)
}

// Profile is the server-established identity. Fields it supplies are locked
// in the form.
type Profile struct {
	UnicityID                  string `json:"unicityId"`
	Email                      string `json:"email"`
	FirstName                  string `json:"firstName"`
	LastName                   string `json:"lastName"`
	Phone                      string `json:"phone,omitempty"`
	VerifiedByExternalRegistry bool   `json:"verifiedByExternalRegistry"`
}

// Registration is a prior submission as returned by the lookup endpoints.
type Registration struct {
	ID            string            `json:"id"`
	EventID       string            `json:"eventId"`
	Email         string            `json:"email"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Phone         string            `json:"phone"`
	DistributorID string            `json:"distributorId"`
	FormData      map[string]string `json:"formData"`
	AttendeeCount int               `json:"attendeeCount"`
}

type GenerateOTPRequest struct {
	Email         string `json:"email"`
	EventID       string `json:"eventId"`
	DistributorID string `json:"distributorId,omitempty"`
}

type GenerateOTPResponse struct {
	Accepted bool   `json:"accepted"`
	DevCode  string `json:"devCode,omitempty"`
}

type validateOTPRequest struct {
	Email   string `json:"email"`
	Code    string `json:"code"`
	EventID string `json:"eventId"`
}

type ValidateOTPResponse struct {
	Verified                   bool     `json:"verified"`
	Profile                    *Profile `json:"profile,omitempty"`
	VerifiedByExternalRegistry bool     `json:"verifiedByExternalRegistry"`
	IsQualified                *bool    `json:"isQualified,omitempty"`
	QualificationMessage       string   `json:"qualificationMessage,omitempty"`
}

type SessionStatusResponse struct {
	Verified bool   `json:"verified"`
	Email    string `json:"email"`
}

type existingRequest struct {
	Email   string `json:"email"`
	EventID string `json:"eventId"`
}

type ExistingRegistrationResponse struct {
	Success      bool          `json:"success"`
	Exists       bool          `json:"exists"`
	Registration *Registration `json:"registration,omitempty"`
}

type consumeTokenRequest struct {
	Token string `json:"token"`
	// Email is advisory; the server trusts the grant behind the token.
	Email   string `json:"email,omitempty"`
	EventID string `json:"eventId"`
}

type ConsumeTokenResponse struct {
	Success  bool     `json:"success"`
	Verified bool     `json:"verified"`
	Email    string   `json:"email"`
	Profile  *Profile `json:"profile,omitempty"`
}

// AttendeePayload is the minimal identity collected per extra ticket in
// open_anonymous mode.
type AttendeePayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// SubmitRequest is the create/update payload. Create is an idempotent upsert
// keyed by (email, eventId) on the server.
type SubmitRequest struct {
	Email                  string            `json:"email"`
	FirstName              string            `json:"firstName"`
	LastName               string            `json:"lastName"`
	Phone                  string            `json:"phone,omitempty"`
	DistributorID          string            `json:"distributorId,omitempty"`
	FormData               map[string]string `json:"formData"`
	ExistingRegistrationID string            `json:"existingRegistrationId,omitempty"`
	TicketCount            int               `json:"ticketCount,omitempty"`
	Attendees              []AttendeePayload `json:"attendees,omitempty"`
}

type SubmitResponse struct {
	Success        bool   `json:"success"`
	RegistrationID string `json:"registrationId"`
	AttendeeToken  string `json:"attendeeToken,omitempty"`
}

// Client is the HTTP client for the registration API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(15 * time.Second).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
	}
}

// do runs the prepared request and folds transport failures and API error
// envelopes into the flow error taxonomy.
func do(req *resty.Request, method, path string) error {
	apiErr := &apiError{}
	req.SetError(apiErr)

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	if resp.IsError() {
		return mapAPIError(resp.StatusCode(), *apiErr)
	}
	return nil
}

func (c *Client) EventConfig(ctx context.Context, eventID string) (*EventConfig, error) {
	var out EventConfig
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if err := do(req, http.MethodGet, "/events/"+eventID); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GenerateOTP(ctx context.Context, in GenerateOTPRequest) (*GenerateOTPResponse, error) {
	var out GenerateOTPResponse
	req := c.http.R().SetContext(ctx).SetBody(in).SetResult(&out)
	if err := do(req, http.MethodPost, "/register/otp/generate"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ValidateOTP(ctx context.Context, email, code, eventID string) (*ValidateOTPResponse, error) {
	var out ValidateOTPResponse
	req := c.http.R().SetContext(ctx).
		SetBody(validateOTPRequest{Email: email, Code: code, EventID: eventID}).
		SetResult(&out)
	if err := do(req, http.MethodPost, "/register/otp/validate"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SessionStatus(ctx context.Context, email, eventID string) (*SessionStatusResponse, error) {
	var out SessionStatusResponse
	req := c.http.R().SetContext(ctx).
		SetQueryParam("email", email).
		SetQueryParam("eventId", eventID).
		SetResult(&out)
	if err := do(req, http.MethodGet, "/register/session-status"); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExistingRegistration looks up a prior submission through the OTP-verified
// session. A 403 means the session lapsed and surfaces as ErrSessionExpired.
func (c *Client) ExistingRegistration(ctx context.Context, email, eventID string) (*ExistingRegistrationResponse, error) {
	var out ExistingRegistrationResponse
	req := c.http.R().SetContext(ctx).
		SetBody(existingRequest{Email: email, EventID: eventID}).
		SetResult(&out)
	if err := do(req, http.MethodPost, "/register/existing"); err != nil {
		return nil, err
	}
	return &out, nil
}

// AttendeeRegistration looks up a prior submission with the long-lived
// attendee token. 401 or 403 surfaces as ErrTokenInvalid.
func (c *Client) AttendeeRegistration(ctx context.Context, token, eventID string) (*ExistingRegistrationResponse, error) {
	var out ExistingRegistrationResponse
	req := c.http.R().SetContext(ctx).
		SetAuthToken(token).
		SetResult(&out)
	if err := do(req, http.MethodGet, "/attendee/registration/"+eventID); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConsumeSessionToken redeems a one-time cross-device token. The grant is
// destroyed on first use; a second redemption fails.
func (c *Client) ConsumeSessionToken(ctx context.Context, token, email, eventID string) (*ConsumeTokenResponse, error) {
	var out ConsumeTokenResponse
	req := c.http.R().SetContext(ctx).
		SetBody(consumeTokenRequest{Token: token, Email: email, EventID: eventID}).
		SetResult(&out)
	if err := do(req, http.MethodPost, "/register/otp/session/consume"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Submit(ctx context.Context, eventID string, in SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	req := c.http.R().SetContext(ctx).SetBody(in).SetResult(&out)
	if err := do(req, http.MethodPost, "/events/"+eventID+"/register"); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Update(ctx context.Context, eventID, registrationID, token string, in SubmitRequest) (*SubmitResponse, error) {
	var out SubmitResponse
	req := c.http.R().SetContext(ctx).
		SetAuthToken(token).
		SetBody(in).
		SetResult(&out)
	if err := do(req, http.MethodPut, "/events/"+eventID+"/register/"+registrationID); err != nil {
		return nil, err
	}
	return &out, nil
}
