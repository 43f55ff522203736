package regflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer emulates the platform API with in-memory state: issued codes,
// verified-session markers, stored registrations, attendee tokens and
// one-time redirect grants.
type fakeServer struct {
	mu  sync.Mutex
	cfg EventConfig

	qualified map[string]*Profile
	denied    map[string]string
	codes     map[string]string
	markers   map[string]bool
	regs      map[string]*Registration
	tokens    map[string]string
	redirects map[string]string

	codeSeq int
	regSeq  int

	generateCalls int
	validateCalls int
	existingCalls int
	submitCalls   int
	updateCalls   int

	lastSubmit   *SubmitRequest
	lastUpdateID string

	rateLimited               bool
	expireOnExisting          bool
	forceVerificationRequired bool

	validateArrived chan struct{}
	validateRelease chan struct{}

	srv *httptest.Server
}

func newFakeServer(t *testing.T, cfg EventConfig) *fakeServer {
	s := &fakeServer{
		cfg:       cfg,
		qualified: map[string]*Profile{},
		denied:    map[string]string{},
		codes:     map[string]string{},
		markers:   map[string]bool{},
		regs:      map[string]*Registration{},
		tokens:    map[string]string{},
		redirects: map[string]string{},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.route))
	t.Cleanup(s.srv.Close)
	return s
}

func (s *fakeServer) flow(store SessionStore, link LinkParams) *Flow {
	return NewFlow(NewClient(s.srv.URL), store, s.cfg.EventID, link)
}

func (s *fakeServer) gated() bool {
	return s.cfg.Mode == ModeQualifiedVerified
}

func (s *fakeServer) requiresVerification() bool {
	return s.cfg.Mode != ModeOpenAnonymous
}

type fakeStats struct {
	generate, validate, existing, submit, update int
}

func (s *fakeServer) stats() fakeStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fakeStats{
		generate: s.generateCalls,
		validate: s.validateCalls,
		existing: s.existingCalls,
		submit:   s.submitCalls,
		update:   s.updateCalls,
	}
}

func (s *fakeServer) submittedPayload() SubmitRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastSubmit == nil {
		return SubmitRequest{}
	}
	return *s.lastSubmit
}

func (s *fakeServer) updatedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdateID
}

func (s *fakeServer) route(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/register/otp/generate":
		s.handleGenerate(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/register/otp/validate":
		s.handleValidate(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/register/session-status":
		s.handleSessionStatus(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/register/existing":
		s.handleExisting(w, r)
	case r.Method == http.MethodPost && r.URL.Path == "/register/otp/session/consume":
		s.handleConsume(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/attendee/registration/"):
		s.handleAttendee(w, r)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/events/") && strings.HasSuffix(r.URL.Path, "/register"):
		s.handleSubmit(w, r)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/events/"):
		s.handleUpdate(w, r)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/events/"):
		s.handleEventConfig(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeServer) handleEventConfig(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

func (s *fakeServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	s.generateCalls++
	if s.rateLimited {
		s.mu.Unlock()
		writeJSON(w, http.StatusTooManyRequests, apiError{ErrorCode: CodeRateLimited, ErrorMessage: "too many code requests"})
		return
	}
	s.codeSeq++
	code := fmt.Sprintf("%06d", 100000+s.codeSeq)
	s.codes[req.Email] = code
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, GenerateOTPResponse{Accepted: true, DevCode: code})
}

func (s *fakeServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req validateOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	s.validateCalls++
	arrived, release := s.validateArrived, s.validateRelease
	s.mu.Unlock()
	if arrived != nil {
		arrived <- struct{}{}
		<-release
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Code == "" || s.codes[req.Email] != req.Code {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorCode: CodeInvalidCode, ErrorMessage: "invalid code"})
		return
	}

	if s.gated() {
		if msg, ok := s.denied[req.Email]; ok {
			// Verified but not qualified; no session marker is kept.
			writeJSON(w, http.StatusOK, ValidateOTPResponse{Verified: true, IsQualified: boolPtr(false), QualificationMessage: msg})
			return
		}
		profile, ok := s.qualified[req.Email]
		if !ok {
			writeJSON(w, http.StatusOK, ValidateOTPResponse{Verified: true, IsQualified: boolPtr(false), QualificationMessage: "this event is limited to qualified attendees"})
			return
		}
		s.markers[req.Email] = true
		writeJSON(w, http.StatusOK, ValidateOTPResponse{
			Verified:                   true,
			Profile:                    profile,
			VerifiedByExternalRegistry: profile != nil && profile.VerifiedByExternalRegistry,
			IsQualified:                boolPtr(true),
		})
		return
	}

	s.markers[req.Email] = true
	writeJSON(w, http.StatusOK, ValidateOTPResponse{Verified: true})
}

func (s *fakeServer) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	s.mu.Lock()
	verified := s.markers[email]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, SessionStatusResponse{Verified: verified, Email: email})
}

func (s *fakeServer) handleExisting(w http.ResponseWriter, r *http.Request) {
	var req existingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.existingCalls++
	if s.expireOnExisting || !s.markers[req.Email] {
		writeJSON(w, http.StatusForbidden, apiError{ErrorCode: CodeSessionExpired, ErrorMessage: "session expired"})
		return
	}
	reg := s.regs[req.Email]
	writeJSON(w, http.StatusOK, ExistingRegistrationResponse{Success: true, Exists: reg != nil, Registration: reg})
}

func (s *fakeServer) handleAttendee(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.tokens[token]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{ErrorCode: CodeTokenInvalid, ErrorMessage: "token invalid"})
		return
	}
	reg := s.regs[email]
	writeJSON(w, http.StatusOK, ExistingRegistrationResponse{Success: true, Exists: reg != nil, Registration: reg})
}

func (s *fakeServer) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.redirects[req.Token]
	if !ok {
		writeJSON(w, http.StatusGone, apiError{ErrorCode: CodeSessionExpired, ErrorMessage: "grant expired or already used"})
		return
	}
	// The grant is destroyed on first use.
	delete(s.redirects, req.Token)
	s.markers[email] = true
	writeJSON(w, http.StatusOK, ConsumeTokenResponse{Success: true, Verified: true, Email: email, Profile: s.qualified[email]})
}

func (s *fakeServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitCalls++
	s.lastSubmit = &req

	if s.forceVerificationRequired {
		s.forceVerificationRequired = false
		writeJSON(w, http.StatusForbidden, apiError{ErrorCode: CodeVerificationRequired, ErrorMessage: "verification required"})
		return
	}
	// An invitation pair counts as verification evidence.
	if s.requiresVerification() && req.DistributorID == "" && !s.markers[req.Email] {
		writeJSON(w, http.StatusForbidden, apiError{ErrorCode: CodeVerificationRequired, ErrorMessage: "verification required"})
		return
	}

	// Upsert keyed by (event, email): a repeat submission updates in place.
	id := ""
	if prior := s.regs[req.Email]; prior != nil {
		id = prior.ID
	} else {
		s.regSeq++
		id = fmt.Sprintf("reg-%d", s.regSeq)
	}
	s.regs[req.Email] = &Registration{
		ID:            id,
		EventID:       s.cfg.EventID,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Phone:         req.Phone,
		DistributorID: req.DistributorID,
		FormData:      req.FormData,
		AttendeeCount: req.TicketCount,
	}
	token := "atk-" + id
	s.tokens[token] = req.Email

	writeJSON(w, http.StatusOK, SubmitResponse{Success: true, RegistrationID: id, AttendeeToken: token})
}

func (s *fakeServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	rid := parts[len(parts)-1]
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{ErrorMessage: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	s.lastUpdateID = rid

	email, ok := s.tokens[token]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, apiError{ErrorCode: CodeTokenInvalid, ErrorMessage: "token invalid"})
		return
	}
	prior := s.regs[email]
	if prior == nil || prior.ID != rid {
		writeJSON(w, http.StatusNotFound, apiError{ErrorCode: CodeRegistrationNotFound, ErrorMessage: "registration not found"})
		return
	}
	prior.FirstName = req.FirstName
	prior.LastName = req.LastName
	prior.Phone = req.Phone
	prior.FormData = req.FormData

	writeJSON(w, http.StatusOK, SubmitResponse{Success: true, RegistrationID: rid})
}

func boolPtr(b bool) *bool { return &b }

func gatedConfig() EventConfig {
	return EventConfig{
		EventID: "ev-gated",
		Name:    "Leadership Summit",
		Mode:    ModeQualifiedVerified,
		Fields: []FieldTemplate{
			{Key: "company", Type: "text", Required: true},
		},
	}
}

func openVerifiedConfig() EventConfig {
	return EventConfig{
		EventID: "ev-open",
		Name:    "Product Launch",
		Mode:    ModeOpenVerified,
		Fields: []FieldTemplate{
			{Key: "company", Type: "text", Required: true},
		},
	}
}

func openAnonymousConfig() EventConfig {
	return EventConfig{
		EventID:    "ev-party",
		Name:       "Summer Party",
		Mode:       ModeOpenAnonymous,
		MaxTickets: 5,
	}
}

func TestFlowQualifiedHappyPath(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{
		UnicityID:                  "U100",
		Email:                      "dana@corp.com",
		FirstName:                  "Dana",
		LastName:                   "Reeve",
		VerifiedByExternalRegistry: true,
	}

	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateEmailEntry, f.State())

	err := f.RequestCode(ctx, "not-an-email")
	require.ErrorIs(t, err, ErrInvalidEmail)
	assert.Equal(t, 0, fake.stats().generate, "an implausible address never reaches the server")

	require.NoError(t, f.RequestCode(ctx, "  Dana@Corp.COM "))
	assert.Equal(t, StateOTPEntry, f.State())
	require.NotEmpty(t, f.DevCode())

	err = f.ValidateCode(ctx, "000000")
	require.ErrorIs(t, err, ErrInvalidCode)
	assert.Equal(t, StateOTPEntry, f.State(), "a wrong code keeps the code screen")

	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateForm, f.State())
	assert.Equal(t, "dana@corp.com", f.VerifiedEmail())

	prefill := f.Prefill()
	assert.Equal(t, "dana@corp.com", prefill["email"])
	assert.Equal(t, "Dana", prefill["firstName"])
	assert.Equal(t, "Reeve", prefill["lastName"])
	assert.Equal(t, []string{"email", "firstName", "lastName"}, f.LockedFields())

	err = f.Submit(ctx, map[string]string{
		"email":     "someone@else.com",
		"firstName": "Dana",
		"lastName":  "Reeve",
		"company":   "Unicity",
	}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, f.State())
	require.NotEmpty(t, f.RegistrationID())

	sent := fake.submittedPayload()
	assert.Equal(t, "dana@corp.com", sent.Email, "a verified identity pins the submission address")
	assert.Equal(t, map[string]string{"company": "Unicity"}, sent.FormData)

	assert.Equal(t, "dana@corp.com", store.VerifiedEmail("ev-gated"))
	token, email := store.Attendee("ev-gated")
	assert.NotEmpty(t, token)
	assert.Equal(t, "dana@corp.com", email)
}

func TestFlowQualificationDenied(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{Email: "dana@corp.com", FirstName: "Dana", LastName: "Reeve"}
	fake.denied["uninvited@corp.com"] = "this event is limited to qualified distributors"

	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "uninvited@corp.com"))
	err := f.ValidateCode(ctx, f.DevCode())
	require.ErrorIs(t, err, ErrQualificationDenied)
	assert.Equal(t, StateDenied, f.State())
	assert.Equal(t, "this event is limited to qualified distributors", f.Notice())
	assert.Empty(t, store.VerifiedEmail("ev-gated"), "no session marker survives a denial")

	// Only a different identity recovers from a denial.
	f.ChangeEmail()
	assert.Equal(t, StateEmailEntry, f.State())
	require.NoError(t, f.RequestCode(ctx, "dana@corp.com"))
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateForm, f.State())
	assert.Equal(t, "dana@corp.com", f.VerifiedEmail())
}

func TestFlowResendReplacesCode(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{Email: "dana@corp.com", FirstName: "Dana", LastName: "Reeve"}

	f := fake.flow(NewMemorySessionStore(), LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "dana@corp.com"))
	first := f.DevCode()
	require.NoError(t, f.ResendCode(ctx))
	second := f.DevCode()
	require.NotEqual(t, first, second)
	assert.Equal(t, 2, fake.stats().generate)

	err := f.ValidateCode(ctx, first)
	require.ErrorIs(t, err, ErrInvalidCode, "only the newest code validates")
	require.NoError(t, f.ValidateCode(ctx, second))
	assert.Equal(t, StateForm, f.State())
}

func TestFlowRateLimitedSurfaces(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.rateLimited = true

	f := fake.flow(NewMemorySessionStore(), LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	err := f.RequestCode(ctx, "dana@corp.com")
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, StateEmailEntry, f.State(), "a rejected request does not advance the flow")
}

func TestFlowChangeEmailDiscardsInflightValidation(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["old@corp.com"] = &Profile{Email: "old@corp.com", FirstName: "Olde", LastName: "Name"}

	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "old@corp.com"))
	code := f.DevCode()

	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	fake.mu.Lock()
	fake.validateArrived = arrived
	fake.validateRelease = release
	fake.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- f.ValidateCode(ctx, code) }()

	<-arrived
	// The user changes the address while the validation is in flight.
	f.ChangeEmail()
	close(release)

	require.NoError(t, <-done, "a stale validation result is discarded, not applied")
	assert.Equal(t, StateEmailEntry, f.State())
	assert.Empty(t, f.VerifiedEmail())
	assert.Empty(t, store.VerifiedEmail("ev-gated"))
}

func TestFlowIdentitySwitchDropsPriorData(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["a@corp.com"] = &Profile{Email: "a@corp.com", FirstName: "Ana", LastName: "First"}
	fake.qualified["b@corp.com"] = &Profile{Email: "b@corp.com", FirstName: "Ben", LastName: "Second"}
	fake.markers["a@corp.com"] = true
	fake.regs["a@corp.com"] = &Registration{
		ID:       "reg-a",
		EventID:  "ev-gated",
		Email:    "a@corp.com",
		FormData: map[string]string{"company": "A Corp"},
	}

	f := fake.flow(NewMemorySessionStore(), LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "a@corp.com"))
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, "A Corp", f.Prefill()["company"])
	require.NotNil(t, f.Existing())

	f.ChangeEmail()
	require.NoError(t, f.RequestCode(ctx, "b@corp.com"))
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateForm, f.State())

	prefill := f.Prefill()
	assert.NotContains(t, prefill, "company", "data loaded for one identity must not surface under another")
	assert.Equal(t, "b@corp.com", prefill["email"])
	assert.Nil(t, f.Existing())

	err := f.Submit(ctx, map[string]string{
		"firstName": "Ben",
		"lastName":  "Second",
		"company":   "B Corp",
	}, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, fake.submittedPayload().ExistingRegistrationID, "the previous identity's registration id must not leak")
}

func TestFlowOpenAnonymousBatch(t *testing.T) {
	fake := newFakeServer(t, openAnonymousConfig())
	f := fake.flow(NewMemorySessionStore(), LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateForm, f.State(), "open events skip straight to the form")

	values := map[string]string{
		"email":     "host@corp.com",
		"firstName": "Harri",
		"lastName":  "Host",
	}
	extras := []AttendeePayload{
		{FirstName: "Pat", LastName: "Guest", Email: "pat@corp.com"},
		{FirstName: "Quinn", LastName: "Guest", Email: "quinn@corp.com"},
	}

	err := f.Submit(ctx, values, 7, nil)
	require.ErrorIs(t, err, ErrTicketCount, "above the event maximum")

	err = f.Submit(ctx, values, 3, extras[:1])
	require.ErrorIs(t, err, ErrTicketCount, "one attendee entry per extra ticket")

	var vErr *ValidationError
	err = f.Submit(ctx, values, 2, []AttendeePayload{{FirstName: "Pat"}})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Missing, "attendees[0].lastName")
	assert.Contains(t, vErr.Missing, "attendees[0].email")

	require.NoError(t, f.Submit(ctx, values, 3, extras))
	assert.Equal(t, StateComplete, f.State())

	st := fake.stats()
	assert.Equal(t, 0, st.generate, "no verification in open_anonymous mode")
	assert.Equal(t, 1, st.submit, "one submission covers the whole group")
	sent := fake.submittedPayload()
	assert.Equal(t, 3, sent.TicketCount)
	assert.Len(t, sent.Attendees, 2)
}

func TestFlowOpenVerifiedDeferredSubmit(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateForm, f.State(), "the form renders before any verification")

	err := f.Submit(ctx, map[string]string{
		"email":     " Casey@Corp.com",
		"firstName": "Casey",
		"lastName":  "Lee",
		"company":   "NewCo",
	}, 0, nil)
	require.ErrorIs(t, err, ErrVerificationRequired)
	assert.Equal(t, StateOTPEntry, f.State())
	st := fake.stats()
	assert.Equal(t, 1, st.generate)
	assert.Equal(t, 0, st.submit, "the payload is held, not sent")

	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateComplete, f.State(), "the held payload is resubmitted without a second form pass")
	require.NotEmpty(t, f.RegistrationID())

	sent := fake.submittedPayload()
	assert.Equal(t, "casey@corp.com", sent.Email)
	assert.Equal(t, "Casey", sent.FirstName)
	assert.Equal(t, map[string]string{"company": "NewCo"}, sent.FormData)
	assert.Equal(t, "casey@corp.com", store.VerifiedEmail("ev-open"))
}

func TestFlowCancelDeferredRestoresForm(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	f := fake.flow(NewMemorySessionStore(), LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	err := f.Submit(ctx, map[string]string{
		"email":     "casey@corp.com",
		"firstName": "Casey",
		"lastName":  "Lee",
		"company":   "NewCo",
	}, 0, nil)
	require.ErrorIs(t, err, ErrVerificationRequired)

	f.CancelDeferred()
	assert.Equal(t, StateForm, f.State())
	prefill := f.Prefill()
	assert.Equal(t, "casey@corp.com", prefill["email"])
	assert.Equal(t, "NewCo", prefill["company"], "entered values survive the cancelled detour")

	err = f.ValidateCode(ctx, "123456")
	require.Error(t, err, "no code is awaited after the detour was cancelled")

	// Submitting again takes the detour again and completes.
	err = f.Submit(ctx, prefill, 0, nil)
	require.ErrorIs(t, err, ErrVerificationRequired)
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateComplete, f.State())
}

func TestFlowServerRejectedSubmitResendsUnchanged(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "casey@corp.com"))
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateForm, f.State())

	fake.mu.Lock()
	fake.forceVerificationRequired = true
	fake.mu.Unlock()

	err := f.Submit(ctx, map[string]string{
		"firstName": "Casey",
		"lastName":  "Lee",
		"company":   "NewCo",
	}, 0, nil)
	require.ErrorIs(t, err, ErrVerificationRequired, "the server-side marker lapsed between status check and submit")
	assert.Equal(t, StateOTPEntry, f.State())
	first := fake.submittedPayload()

	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	assert.Equal(t, StateComplete, f.State())
	second := fake.submittedPayload()
	assert.Equal(t, first, second, "the payload is resent exactly as captured")
	assert.Equal(t, 2, fake.stats().submit)
}

func TestFlowSessionRestorePrefillsAndUpdates(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	fake.markers["dana@corp.com"] = true
	fake.regs["dana@corp.com"] = &Registration{
		ID:        "reg-42",
		EventID:   "ev-open",
		Email:     "dana@corp.com",
		FirstName: "Dana",
		LastName:  "Reeve",
		FormData:  map[string]string{"company": "Unicity"},
	}

	store := NewMemorySessionStore()
	store.SetVerifiedEmail("ev-open", "dana@corp.com")

	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateForm, f.State(), "a live verified session skips email entry")
	assert.Equal(t, "dana@corp.com", f.VerifiedEmail())
	require.NotNil(t, f.Existing())
	assert.Equal(t, "reg-42", f.Existing().ID)

	prefill := f.Prefill()
	assert.Equal(t, "Unicity", prefill["company"])
	assert.Equal(t, "Dana", prefill["firstName"])

	err := f.Submit(ctx, map[string]string{
		"firstName": "Dana",
		"lastName":  "Reeve",
		"company":   "NewCo",
	}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "reg-42", f.RegistrationID(), "the upsert keeps the prior registration id")
	assert.Equal(t, "reg-42", fake.submittedPayload().ExistingRegistrationID)
}

func TestFlowStaleStoredEmailResetsWithNotice(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())

	store := NewMemorySessionStore()
	store.SetVerifiedEmail("ev-gated", "dana@corp.com")

	f := fake.flow(store, LinkParams{})
	require.NoError(t, f.Load(context.Background(), ""))

	assert.Equal(t, StateEmailEntry, f.State())
	assert.Equal(t, "verification session has expired, please verify the email again", f.Notice())
	assert.Empty(t, store.VerifiedEmail("ev-gated"), "the stale local copy is dropped")
}

func TestFlowAttendeeTokenRestoreUpdatesInPlace(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	fake.tokens["atk-7"] = "dana@corp.com"
	fake.regs["dana@corp.com"] = &Registration{
		ID:        "reg-9",
		EventID:   "ev-open",
		Email:     "dana@corp.com",
		FirstName: "Dana",
		LastName:  "Reeve",
		FormData:  map[string]string{"company": "Unicity"},
	}

	store := NewMemorySessionStore()
	store.SetAttendee("ev-open", "atk-7", "dana@corp.com")

	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateForm, f.State())
	assert.Equal(t, "dana@corp.com", f.VerifiedEmail())
	require.NotNil(t, f.Existing())
	assert.Equal(t, "Unicity", f.Prefill()["company"])

	err := f.Submit(ctx, map[string]string{
		"firstName": "Dana",
		"lastName":  "Reeve",
		"company":   "NewCo",
	}, 0, nil)
	require.NoError(t, err)

	st := fake.stats()
	assert.Equal(t, 1, st.update, "a token-backed registration is updated, not re-created")
	assert.Equal(t, 0, st.submit)
	assert.Equal(t, "reg-9", fake.updatedID())
	assert.Equal(t, "reg-9", f.RegistrationID())
}

func TestFlowRejectedTokenFallsBackToStoredSession(t *testing.T) {
	fake := newFakeServer(t, openVerifiedConfig())
	fake.markers["dana@corp.com"] = true
	fake.regs["dana@corp.com"] = &Registration{
		ID:      "reg-5",
		EventID: "ev-open",
		Email:   "dana@corp.com",
	}

	store := NewMemorySessionStore()
	store.SetAttendee("ev-open", "atk-revoked", "dana@corp.com")
	store.SetVerifiedEmail("ev-open", "dana@corp.com")

	f := fake.flow(store, LinkParams{})
	require.NoError(t, f.Load(context.Background(), ""))

	assert.Equal(t, StateForm, f.State(), "the verified session rescues the restore")
	require.NotNil(t, f.Existing())
	assert.Equal(t, "reg-5", f.Existing().ID)

	token, _ := store.Attendee("ev-open")
	assert.Empty(t, token, "a rejected token is dropped from the store")
}

func TestFlowRedirectTokenConsumedOnce(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{Email: "dana@corp.com", FirstName: "Dana", LastName: "Reeve"}
	fake.redirects["rt-1"] = "dana@corp.com"

	ctx := context.Background()

	first := fake.flow(NewMemorySessionStore(), LinkParams{})
	require.NoError(t, first.Load(ctx, "rt-1"))
	assert.Equal(t, StateForm, first.State())
	assert.Equal(t, "dana@corp.com", first.VerifiedEmail())
	assert.Contains(t, first.LockedFields(), "firstName")

	second := fake.flow(NewMemorySessionStore(), LinkParams{})
	require.NoError(t, second.Load(ctx, "rt-1"))
	assert.Equal(t, StateEmailEntry, second.State(), "the grant is destroyed on first use")
	assert.Equal(t, "verification link has expired or was already used", second.Notice())
}

func TestFlowExpiredSessionDuringLookupResets(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{Email: "dana@corp.com", FirstName: "Dana", LastName: "Reeve"}
	fake.expireOnExisting = true

	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "dana@corp.com"))
	err := f.ValidateCode(ctx, f.DevCode())
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, StateEmailEntry, f.State(), "an expired session resets to the earliest safe state")
	assert.Empty(t, f.VerifiedEmail())
	assert.Empty(t, store.VerifiedEmail("ev-gated"))
	assert.Equal(t, "verification session has expired, please verify the email again", f.Notice())
}

func TestFlowInvitationLinkSkipsVerification(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	f := fake.flow(NewMemorySessionStore(), LinkParams{DistributorID: "d-7", Email: "VIP@Corp.com"})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	assert.Equal(t, StateForm, f.State(), "a pre-qualified invitation goes straight to the form")
	assert.Equal(t, "vip@corp.com", f.Prefill()["email"])

	err := f.Submit(ctx, map[string]string{
		"email":     "vip@corp.com",
		"firstName": "Vee",
		"lastName":  "Ip",
		"company":   "Unicity",
	}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, StateComplete, f.State())

	st := fake.stats()
	assert.Equal(t, 0, st.generate, "no code is requested on the invitation path")
	sent := fake.submittedPayload()
	assert.Equal(t, "d-7", sent.DistributorID)
	assert.Equal(t, "vip@corp.com", sent.Email)
}

func TestFlowLogoutClearsEverything(t *testing.T) {
	fake := newFakeServer(t, gatedConfig())
	fake.qualified["dana@corp.com"] = &Profile{Email: "dana@corp.com", FirstName: "Dana", LastName: "Reeve"}

	store := NewMemorySessionStore()
	f := fake.flow(store, LinkParams{})
	ctx := context.Background()

	require.NoError(t, f.Load(ctx, ""))
	require.NoError(t, f.RequestCode(ctx, "dana@corp.com"))
	require.NoError(t, f.ValidateCode(ctx, f.DevCode()))
	require.NoError(t, f.Submit(ctx, map[string]string{
		"firstName": "Dana",
		"lastName":  "Reeve",
		"company":   "Unicity",
	}, 0, nil))
	require.Equal(t, StateComplete, f.State())

	f.Logout()

	assert.Equal(t, StateEmailEntry, f.State())
	assert.Empty(t, f.VerifiedEmail())
	assert.Empty(t, f.RegistrationID())
	assert.Empty(t, f.Prefill())
	assert.Empty(t, store.VerifiedEmail("ev-gated"))
	token, _ := store.Attendee("ev-gated")
	assert.Empty(t, token)
}
