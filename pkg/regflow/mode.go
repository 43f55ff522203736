package regflow

// Mode is the resolved registration mode of an event.
type Mode string

const (
	// ModeQualifiedVerified requires email verification and a place on the
	// event's qualifier list.
	ModeQualifiedVerified Mode = "qualified_verified"
	// ModeOpenVerified requires email verification only. The form renders
	// immediately and the OTP gate may be deferred to submit time.
	ModeOpenVerified Mode = "open_verified"
	// ModeOpenAnonymous requires neither and supports multiple attendees per
	// submission.
	ModeOpenAnonymous Mode = "open_anonymous"
)

// EventConfig is the registration-related slice of an event's configuration
// as served by GET /events/:eventId.
type EventConfig struct {
	EventID string `json:"eventId"`
	Name    string `json:"name"`

	// Mode is empty on legacy events, which carry only the two booleans.
	Mode                  Mode `json:"mode,omitempty"`
	RequiresVerification  bool `json:"requiresVerification"`
	RequiresQualification bool `json:"requiresQualification"`

	MaxTickets int             `json:"maxTickets"`
	Fields     []FieldTemplate `json:"fields"`
}

// LinkParams are values pre-populated in a registration URL. A link carrying
// both a distributor id and an email is a pre-qualified invitation.
type LinkParams struct {
	DistributorID string
	Email         string
}

// Invitation reports whether the link is a pre-qualified invitation link.
func (l LinkParams) Invitation() bool {
	return l.DistributorID != "" && l.Email != ""
}

// Resolution is the consolidated mode output. Nothing downstream branches on
// the legacy booleans again.
type Resolution struct {
	Mode                  Mode
	RequiresVerification  bool
	RequiresQualification bool

	// SkipVerification is the documented pre-qualified invitation override:
	// a link carrying both distributor id and email skips verification
	// regardless of mode.
	SkipVerification bool
}

// ResolveMode derives the registration mode from an event's configuration.
// An explicit mode is authoritative; otherwise the legacy booleans decide:
// verification without qualification is open_verified, neither is
// open_anonymous, both is qualified_verified. A qualification list without
// verification cannot be enforced, so that legacy combination resolves to
// qualified_verified as well.
func ResolveMode(cfg EventConfig, link LinkParams) Resolution {
	mode := cfg.Mode
	if mode == "" {
		switch {
		case cfg.RequiresQualification:
			mode = ModeQualifiedVerified
		case cfg.RequiresVerification:
			mode = ModeOpenVerified
		default:
			mode = ModeOpenAnonymous
		}
	}

	res := Resolution{Mode: mode}
	switch mode {
	case ModeQualifiedVerified:
		res.RequiresVerification = true
		res.RequiresQualification = true
	case ModeOpenVerified:
		res.RequiresVerification = true
	case ModeOpenAnonymous:
		// neither
	}

	if res.RequiresVerification && link.Invitation() {
		res.SkipVerification = true
	}

	return res
}
