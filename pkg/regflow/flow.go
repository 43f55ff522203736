package regflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// State is the screen the flow is currently on.
type State string

const (
	StateLoading    State = "loading"
	StateEmailEntry State = "email_entry"
	StateOTPEntry   State = "otp_entry"
	StateForm       State = "form"
	StateComplete   State = "complete"
	StateDenied     State = "denied"
)

// Standard identity fields. They live outside the event's custom field
// templates and are stripped before values reach the form-data payload.
const (
	fieldEmail     = "email"
	fieldFirstName = "firstName"
	fieldLastName  = "lastName"
	fieldPhone     = "phone"
)

func isStandardField(key string) bool {
	switch key {
	case fieldEmail, fieldFirstName, fieldLastName, fieldPhone:
		return true
	}
	return false
}

// Flow drives a single registration attempt for one event. It owns the
// screen state, the verified identity, the deferred payload and the
// existing-registration lookup, and talks to the platform API through
// Client.
//
// Methods are safe for concurrent use; network calls run outside the lock
// and results that arrive after the identity changed are discarded.
type Flow struct {
	client   *Client
	resolver *Resolver
	store    SessionStore

	cfg    EventConfig
	link   LinkParams
	res    Resolution
	schema *Schema

	mu            sync.Mutex
	state         State
	identity      IdentityKey
	verifiedEmail string
	profile       *Profile
	otpEmail      string
	otpSeq        int
	devCode       string
	notice        string

	existing   *Registration
	existingID string
	prefill    map[string]string

	held *SubmitRequest

	registrationID string
	attendeeToken  string
}

func NewFlow(client *Client, store SessionStore, eventID string, link LinkParams) *Flow {
	if store == nil {
		store = NewMemorySessionStore()
	}
	return &Flow{
		client:   client,
		resolver: NewResolver(client),
		store:    store,
		cfg:      EventConfig{EventID: eventID},
		link:     link,
		state:    StateLoading,
		prefill:  map[string]string{},
	}
}

// Load fetches the event configuration, resolves the registration mode and
// restores any prior verified session. Restoration tries, in order: the
// cross-device redirect token, the long-lived attendee token, and the
// locally stored verified email. Whatever fails is cleared and the next
// source is tried; only a failed configuration fetch is fatal.
func (f *Flow) Load(ctx context.Context, redirectToken string) error {
	const op = "regflow.Flow.Load"

	cfg, err := f.client.EventConfig(ctx, f.cfg.EventID)
	if err != nil {
		return fmt.Errorf("%s: fetch event config: %w", op, err)
	}

	f.mu.Lock()
	f.cfg = *cfg
	f.res = ResolveMode(*cfg, f.link)
	f.schema = NewSchema(cfg.Fields)
	f.mu.Unlock()

	if redirectToken != "" && f.restoreFromRedirect(ctx, redirectToken) {
		return nil
	}
	if f.restoreFromAttendeeToken(ctx) {
		return nil
	}
	if f.restoreFromStoredEmail(ctx) {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.enterInitialState()
	return nil
}

// enterInitialState picks the first screen for a fresh visit. Callers hold
// the lock.
func (f *Flow) enterInitialState() {
	if f.res.RequiresQualification && !f.res.SkipVerification {
		f.state = StateEmailEntry
		if f.link.Email != "" {
			f.prefill[fieldEmail] = NormalizeEmail(f.link.Email)
		}
		return
	}
	// Open events go straight to the form; verification, when required,
	// is deferred until submission.
	f.state = StateForm
	if f.link.Email != "" {
		f.prefill[fieldEmail] = NormalizeEmail(f.link.Email)
	}
}

func (f *Flow) restoreFromRedirect(ctx context.Context, token string) bool {
	resp, err := f.client.ConsumeSessionToken(ctx, token, NormalizeEmail(f.link.Email), f.cfg.EventID)
	if err != nil || !resp.Verified {
		f.mu.Lock()
		f.notice = "verification link has expired or was already used"
		f.mu.Unlock()
		return false
	}

	f.mu.Lock()
	f.applyVerified(resp.Email, resp.Profile)
	f.mu.Unlock()

	f.store.SetVerifiedEmail(f.cfg.EventID, resp.Email)
	if !f.lookupExisting(ctx) {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.enterForm()
	return true
}

func (f *Flow) restoreFromAttendeeToken(ctx context.Context) bool {
	token, storedEmail := f.store.Attendee(f.cfg.EventID)
	if token == "" {
		return false
	}

	resp, err := f.client.AttendeeRegistration(ctx, token, f.cfg.EventID)
	if errors.Is(err, ErrTokenInvalid) {
		f.store.ClearAttendee(f.cfg.EventID)
		return false
	}
	if err != nil || !resp.Exists {
		return false
	}
	if NormalizeEmail(resp.Registration.Email) != storedEmail {
		f.store.SetAttendee(f.cfg.EventID, token, resp.Registration.Email)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyVerified(resp.Registration.Email, nil)
	f.attendeeToken = token
	f.applyExisting(resp.Registration)
	f.enterForm()
	return true
}

func (f *Flow) restoreFromStoredEmail(ctx context.Context) bool {
	email := f.store.VerifiedEmail(f.cfg.EventID)
	if email == "" {
		return false
	}

	status, err := f.client.SessionStatus(ctx, email, f.cfg.EventID)
	if err != nil {
		return false
	}
	if !status.Verified {
		// Server-side marker expired; the local copy is stale.
		f.store.ClearVerifiedEmail(f.cfg.EventID)
		f.mu.Lock()
		f.notice = "verification session has expired, please verify the email again"
		f.mu.Unlock()
		return false
	}

	f.mu.Lock()
	f.applyVerified(email, nil)
	f.mu.Unlock()

	if !f.lookupExisting(ctx) {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.enterForm()
	return true
}

// applyVerified records a verified identity. Callers hold the lock.
func (f *Flow) applyVerified(email string, p *Profile) {
	key := NewIdentityKey(email, f.cfg.EventID)
	if f.identity != key {
		f.clearIdentityScopedLocked()
	}
	f.identity = key
	f.verifiedEmail = key.Email
	if p != nil {
		f.profile = p
	}
}

// clearIdentityScopedLocked drops everything loaded for the previous
// identity. Data loaded under one identity must never surface under another.
// The held payload survives: it belongs to the identity being established.
func (f *Flow) clearIdentityScopedLocked() {
	f.profile = nil
	f.existing = nil
	f.existingID = ""
	f.attendeeToken = ""
	f.prefill = map[string]string{}
}

// applyExisting adopts a prior submission for prefill and update. Callers
// hold the lock.
func (f *Flow) applyExisting(reg *Registration) {
	if reg == nil {
		return
	}
	f.existing = reg
	f.existingID = reg.ID
}

// enterForm moves to the form screen and seeds prefill from the existing
// registration, then the profile. Callers hold the lock.
func (f *Flow) enterForm() {
	f.state = StateForm
	if f.verifiedEmail != "" {
		f.prefill[fieldEmail] = f.verifiedEmail
	}
	if f.profile != nil {
		setIfPresent(f.prefill, fieldFirstName, f.profile.FirstName)
		setIfPresent(f.prefill, fieldLastName, f.profile.LastName)
		setIfPresent(f.prefill, fieldPhone, f.profile.Phone)
	}
	if f.existing != nil {
		setIfPresent(f.prefill, fieldFirstName, f.existing.FirstName)
		setIfPresent(f.prefill, fieldLastName, f.existing.LastName)
		setIfPresent(f.prefill, fieldPhone, f.existing.Phone)
		for k, v := range f.existing.FormData {
			f.prefill[k] = v
		}
	}
}

func setIfPresent(m map[string]string, key, val string) {
	if val != "" {
		m[key] = val
	}
}

// lookupExisting probes for a prior submission for the current identity and
// reports whether the flow may proceed to the form. A rejected attendee
// token is dropped. A lapsed verified session resets the flow to email
// entry and returns false; any other failure is soft and leaves the form
// blank.
func (f *Flow) lookupExisting(ctx context.Context) bool {
	f.mu.Lock()
	key := f.identity
	token := f.attendeeToken
	f.mu.Unlock()

	if key.Zero() {
		return true
	}
	if token == "" {
		storedToken, storedEmail := f.store.Attendee(f.cfg.EventID)
		if storedEmail == "" || storedEmail == key.Email {
			token = storedToken
		}
	}

	result, err := f.resolver.Resolve(ctx, key, token)
	if result == nil {
		return true
	}

	f.mu.Lock()
	if f.identity != result.Key {
		// Identity changed while the lookup was in flight.
		f.mu.Unlock()
		return true
	}
	if result.TokenRejected {
		f.attendeeToken = ""
		f.store.ClearAttendee(f.cfg.EventID)
	}
	f.mu.Unlock()

	if errors.Is(err, ErrSessionExpired) {
		f.expireSession(key)
		return false
	}
	if err != nil || !result.Exists {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.identity != result.Key {
		return true
	}
	f.applyExisting(result.Registration)
	if result.Source == LookupSourceToken {
		f.attendeeToken = token
	}
	return true
}

// expireSession clears a verified session the server no longer honors and
// returns the flow to email entry so the identity can be verified again. The
// reset is skipped when the identity moved on in the meantime.
func (f *Flow) expireSession(key IdentityKey) {
	f.store.ClearVerifiedEmail(f.cfg.EventID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !key.Zero() && f.identity != key {
		return
	}
	f.otpSeq++
	f.verifiedEmail = ""
	f.identity = IdentityKey{}
	f.profile = nil
	f.existing = nil
	f.existingID = ""
	f.held = nil
	f.otpEmail = ""
	f.devCode = ""
	f.prefill = map[string]string{}
	f.notice = "verification session has expired, please verify the email again"
	f.state = StateEmailEntry
}

// RequestCode asks the server to send a one-time code to email and moves to
// the code-entry screen. Requesting again for the same address replaces the
// previous code; only the newest one validates.
func (f *Flow) RequestCode(ctx context.Context, email string) error {
	const op = "regflow.Flow.RequestCode"

	email = NormalizeEmail(email)
	if !plausibleEmail(email) {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	f.mu.Lock()
	if f.state == StateComplete {
		f.mu.Unlock()
		return fmt.Errorf("%s: registration already completed", op)
	}
	distributorID := f.link.DistributorID
	eventID := f.cfg.EventID
	f.mu.Unlock()

	resp, err := f.client.GenerateOTP(ctx, GenerateOTPRequest{
		Email:         email,
		EventID:       eventID,
		DistributorID: distributorID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpEmail = email
	f.devCode = resp.DevCode
	f.notice = ""
	f.state = StateOTPEntry
	return nil
}

// ResendCode requests a fresh code for the address already on the
// code-entry screen.
func (f *Flow) ResendCode(ctx context.Context) error {
	const op = "regflow.Flow.ResendCode"

	f.mu.Lock()
	email := f.otpEmail
	f.mu.Unlock()
	if email == "" {
		return fmt.Errorf("%s: no code was requested", op)
	}
	return f.RequestCode(ctx, email)
}

// ChangeEmail abandons the pending code and returns to email entry. A
// validation still in flight for the old address is discarded when it
// lands.
func (f *Flow) ChangeEmail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpSeq++
	f.otpEmail = ""
	f.devCode = ""
	f.notice = ""
	f.state = StateEmailEntry
}

// CancelDeferred drops the payload held for deferred verification and
// returns to the form with its values restored.
func (f *Flow) CancelDeferred() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held == nil {
		return
	}
	f.otpSeq++
	f.restoreHeldLocked()
	f.state = StateForm
}

// restoreHeldLocked moves the held payload back into prefill. Callers hold
// the lock.
func (f *Flow) restoreHeldLocked() {
	req := f.held
	f.held = nil
	if req == nil {
		return
	}
	f.prefill[fieldEmail] = req.Email
	setIfPresent(f.prefill, fieldFirstName, req.FirstName)
	setIfPresent(f.prefill, fieldLastName, req.LastName)
	setIfPresent(f.prefill, fieldPhone, req.Phone)
	for k, v := range req.FormData {
		f.prefill[k] = v
	}
}

// ValidateCode checks the entered code. On success the identity becomes
// verified, qualification is evaluated for gated events, a prior
// registration is looked up, and a payload held for deferred verification
// is resubmitted unchanged.
func (f *Flow) ValidateCode(ctx context.Context, code string) error {
	const op = "regflow.Flow.ValidateCode"

	f.mu.Lock()
	if f.state != StateOTPEntry {
		f.mu.Unlock()
		return fmt.Errorf("%s: no code is awaited", op)
	}
	email := f.otpEmail
	seq := f.otpSeq
	eventID := f.cfg.EventID
	f.mu.Unlock()

	resp, err := f.client.ValidateOTP(ctx, email, code, eventID)

	f.mu.Lock()
	if f.otpSeq != seq {
		// The email changed while the request was in flight.
		f.mu.Unlock()
		return nil
	}
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	if !resp.Verified {
		f.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrInvalidCode)
	}

	if f.res.RequiresQualification && resp.IsQualified != nil && !*resp.IsQualified {
		// Verified but not on the event's list. No session marker is
		// kept for a denied identity.
		f.held = nil
		f.notice = resp.QualificationMessage
		f.state = StateDenied
		f.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrQualificationDenied)
	}

	f.applyVerified(email, resp.Profile)
	held := f.held
	f.mu.Unlock()

	f.store.SetVerifiedEmail(eventID, email)

	if held != nil {
		return f.resubmitHeld(ctx, held, seq)
	}

	if !f.lookupExisting(ctx) {
		return fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.otpSeq != seq {
		return nil
	}
	f.enterForm()
	return nil
}

// resubmitHeld sends the payload exactly as it was captured before the
// verification detour.
func (f *Flow) resubmitHeld(ctx context.Context, held *SubmitRequest, seq int) error {
	const op = "regflow.Flow.resubmitHeld"

	resp, err := f.submitRequest(ctx, *held)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.otpSeq != seq {
		return nil
	}
	if err != nil {
		// Keep the payload on the form so the user can retry.
		f.restoreHeldLocked()
		f.state = StateForm
		return fmt.Errorf("%s: %w", op, err)
	}
	f.held = nil
	f.completeLocked(resp, held.Email)
	return nil
}

// Submit validates the form values and sends the registration. For open
// events that require verification it instead holds the payload, requests a
// code and returns ErrVerificationRequired; the payload is resent
// automatically once the code validates. A stale verified session rejected
// by the server takes the same detour.
func (f *Flow) Submit(ctx context.Context, values map[string]string, ticketCount int, attendees []AttendeePayload) error {
	const op = "regflow.Flow.Submit"

	f.mu.Lock()
	if f.state != StateForm {
		f.mu.Unlock()
		return fmt.Errorf("%s: flow is in state %s", op, f.state)
	}
	req, err := f.buildSubmitLocked(values, ticketCount, attendees)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}

	if f.res.RequiresVerification && !f.res.SkipVerification && f.verifiedEmail == "" {
		f.held = req
		f.mu.Unlock()
		return f.deferForVerification(ctx, req.Email, op)
	}
	f.mu.Unlock()

	resp, err := f.submitRequest(ctx, *req)
	if errors.Is(err, ErrVerificationRequired) {
		// The server-side marker lapsed between status check and
		// submission. Re-verify and resend.
		f.mu.Lock()
		f.held = req
		f.verifiedEmail = ""
		f.mu.Unlock()
		f.store.ClearVerifiedEmail(f.cfg.EventID)
		return f.deferForVerification(ctx, req.Email, op)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.completeLocked(resp, req.Email)
	return nil
}

// deferForVerification starts the OTP detour for a held payload. The
// returned error is always ErrVerificationRequired; a failed code request
// leaves the user on the code screen where resend is available.
func (f *Flow) deferForVerification(ctx context.Context, email, op string) error {
	if err := f.RequestCode(ctx, email); err != nil {
		f.mu.Lock()
		f.otpEmail = NormalizeEmail(email)
		f.state = StateOTPEntry
		f.mu.Unlock()
		return fmt.Errorf("%s: %w (request code: %v)", op, ErrVerificationRequired, err)
	}
	return fmt.Errorf("%s: %w", op, ErrVerificationRequired)
}

// submitRequest routes to update when a prior registration was adopted
// through an attendee token, and to the idempotent create otherwise.
func (f *Flow) submitRequest(ctx context.Context, req SubmitRequest) (*SubmitResponse, error) {
	f.mu.Lock()
	eventID := f.cfg.EventID
	existingID := f.existingID
	token := f.attendeeToken
	f.mu.Unlock()

	if existingID != "" && token != "" {
		return f.client.Update(ctx, eventID, existingID, token, req)
	}
	req.ExistingRegistrationID = existingID
	return f.client.Submit(ctx, eventID, req)
}

// completeLocked records the submission outcome. Callers hold the lock.
func (f *Flow) completeLocked(resp *SubmitResponse, email string) {
	f.registrationID = resp.RegistrationID
	f.existingID = resp.RegistrationID
	if resp.AttendeeToken != "" {
		f.attendeeToken = resp.AttendeeToken
		f.store.SetAttendee(f.cfg.EventID, resp.AttendeeToken, email)
	}
	f.state = StateComplete
}

// buildSubmitLocked turns raw form values into the wire payload. Standard
// identity fields are extracted, custom values are pruned to the active
// schema, and ticket counts are checked for events that sell multiple
// tickets. Callers hold the lock.
func (f *Flow) buildSubmitLocked(values map[string]string, ticketCount int, attendees []AttendeePayload) (*SubmitRequest, error) {
	req := &SubmitRequest{
		Email:         NormalizeEmail(values[fieldEmail]),
		FirstName:     strings.TrimSpace(values[fieldFirstName]),
		LastName:      strings.TrimSpace(values[fieldLastName]),
		Phone:         strings.TrimSpace(values[fieldPhone]),
		DistributorID: f.link.DistributorID,
	}
	if f.verifiedEmail != "" {
		// A verified identity pins the submission address.
		req.Email = f.verifiedEmail
	}
	if !plausibleEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	var missing []string
	if req.FirstName == "" {
		missing = append(missing, fieldFirstName)
	}
	if req.LastName == "" {
		missing = append(missing, fieldLastName)
	}
	missing = append(missing, f.schema.Missing(values)...)
	missing = append(missing, attendeeMissing(f.res.Mode, ticketCount, attendees)...)
	if len(missing) > 0 {
		return nil, &ValidationError{Missing: missing}
	}

	req.FormData = f.schema.Prune(values)

	if f.res.Mode == ModeOpenAnonymous {
		if ticketCount == 0 {
			ticketCount = 1
		}
		if ticketCount < 1 || (f.cfg.MaxTickets > 0 && ticketCount > f.cfg.MaxTickets) {
			return nil, ErrTicketCount
		}
		if len(attendees) != ticketCount-1 {
			return nil, ErrTicketCount
		}
		req.TicketCount = ticketCount
		req.Attendees = attendees
	}

	return req, nil
}

func attendeeMissing(mode Mode, ticketCount int, attendees []AttendeePayload) []string {
	if mode != ModeOpenAnonymous || ticketCount <= 1 {
		return nil
	}
	var missing []string
	for i, a := range attendees {
		if strings.TrimSpace(a.FirstName) == "" {
			missing = append(missing, fmt.Sprintf("attendees[%d].firstName", i))
		}
		if strings.TrimSpace(a.LastName) == "" {
			missing = append(missing, fmt.Sprintf("attendees[%d].lastName", i))
		}
		if !plausibleEmail(NormalizeEmail(a.Email)) {
			missing = append(missing, fmt.Sprintf("attendees[%d].email", i))
		}
	}
	return missing
}

// Logout clears the verified session and the attendee token and returns the
// flow to its initial screen.
func (f *Flow) Logout() {
	f.store.ClearVerifiedEmail(f.cfg.EventID)
	f.store.ClearAttendee(f.cfg.EventID)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.otpSeq++
	f.verifiedEmail = ""
	f.identity = IdentityKey{}
	f.profile = nil
	f.existing = nil
	f.existingID = ""
	f.attendeeToken = ""
	f.registrationID = ""
	f.held = nil
	f.otpEmail = ""
	f.devCode = ""
	f.notice = ""
	f.prefill = map[string]string{}
	f.enterInitialState()
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Config() EventConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *Flow) Resolution() Resolution {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

func (f *Flow) Schema() *Schema {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.schema
}

// Prefill returns a copy of the values to seed the form with.
func (f *Flow) Prefill() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.prefill))
	for k, v := range f.prefill {
		out[k] = v
	}
	return out
}

// LockedFields lists the identity fields the user may not edit: the
// verified email and whatever the profile supplied.
func (f *Flow) LockedFields() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	set := map[string]struct{}{}
	if f.verifiedEmail != "" {
		set[fieldEmail] = struct{}{}
	}
	if f.profile != nil {
		if f.profile.FirstName != "" {
			set[fieldFirstName] = struct{}{}
		}
		if f.profile.LastName != "" {
			set[fieldLastName] = struct{}{}
		}
		if f.profile.Phone != "" {
			set[fieldPhone] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (f *Flow) VerifiedEmail() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.verifiedEmail
}

func (f *Flow) Profile() *Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

// Existing reports the prior registration adopted for this identity, if
// any.
func (f *Flow) Existing() *Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing
}

func (f *Flow) RegistrationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.registrationID
}

// Notice is a human-readable message attached to the current state, such as
// the qualification denial text.
func (f *Flow) Notice() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notice
}

// DevCode is the code echoed by non-production servers so flows can be
// exercised without a mailbox.
func (f *Flow) DevCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devCode
}

func plausibleEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.Contains(email[at+1:], "@")
}
