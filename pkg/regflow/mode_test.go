package regflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  EventConfig
		link LinkParams
		want Resolution
	}{
		{
			name: "explicit qualified_verified",
			cfg:  EventConfig{Mode: ModeQualifiedVerified},
			want: Resolution{Mode: ModeQualifiedVerified, RequiresVerification: true, RequiresQualification: true},
		},
		{
			name: "explicit open_verified",
			cfg:  EventConfig{Mode: ModeOpenVerified},
			want: Resolution{Mode: ModeOpenVerified, RequiresVerification: true},
		},
		{
			name: "explicit open_anonymous",
			cfg:  EventConfig{Mode: ModeOpenAnonymous},
			want: Resolution{Mode: ModeOpenAnonymous},
		},
		{
			name: "enum wins over contradicting booleans",
			cfg: EventConfig{
				Mode:                  ModeOpenAnonymous,
				RequiresVerification:  true,
				RequiresQualification: true,
			},
			want: Resolution{Mode: ModeOpenAnonymous},
		},
		{
			name: "legacy booleans, both set",
			cfg:  EventConfig{RequiresVerification: true, RequiresQualification: true},
			want: Resolution{Mode: ModeQualifiedVerified, RequiresVerification: true, RequiresQualification: true},
		},
		{
			name: "legacy booleans, verification only",
			cfg:  EventConfig{RequiresVerification: true},
			want: Resolution{Mode: ModeOpenVerified, RequiresVerification: true},
		},
		{
			name: "legacy booleans, neither",
			cfg:  EventConfig{},
			want: Resolution{Mode: ModeOpenAnonymous},
		},
		{
			name: "legacy qualification without verification still gates",
			cfg:  EventConfig{RequiresQualification: true},
			want: Resolution{Mode: ModeQualifiedVerified, RequiresVerification: true, RequiresQualification: true},
		},
		{
			name: "invitation link skips verification",
			cfg:  EventConfig{Mode: ModeQualifiedVerified},
			link: LinkParams{DistributorID: "U100", Email: "dana@corp.com"},
			want: Resolution{
				Mode:                  ModeQualifiedVerified,
				RequiresVerification:  true,
				RequiresQualification: true,
				SkipVerification:      true,
			},
		},
		{
			name: "distributor id alone is not an invitation",
			cfg:  EventConfig{Mode: ModeOpenVerified},
			link: LinkParams{DistributorID: "U100"},
			want: Resolution{Mode: ModeOpenVerified, RequiresVerification: true},
		},
		{
			name: "email alone is not an invitation",
			cfg:  EventConfig{Mode: ModeOpenVerified},
			link: LinkParams{Email: "dana@corp.com"},
			want: Resolution{Mode: ModeOpenVerified, RequiresVerification: true},
		},
		{
			name: "invitation is irrelevant without verification",
			cfg:  EventConfig{Mode: ModeOpenAnonymous},
			link: LinkParams{DistributorID: "U100", Email: "dana@corp.com"},
			want: Resolution{Mode: ModeOpenAnonymous},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(tt.cfg, tt.link))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "dana@corp.com", NormalizeEmail("  Dana@Corp.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestIdentityKey(t *testing.T) {
	a := NewIdentityKey("Dana@Corp.com", "ev-1")
	b := NewIdentityKey(" dana@corp.com ", "ev-1")
	assert.Equal(t, a, b)
	assert.Equal(t, "ev-1|dana@corp.com", a.String())

	assert.NotEqual(t, a, NewIdentityKey("dana@corp.com", "ev-2"))
	assert.True(t, IdentityKey{}.Zero())
	assert.False(t, a.Zero())
}
