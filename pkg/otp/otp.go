package otp

import "github.com/xlzd/gotp"

// Generator provides logic for generating one-time codes and opaque secrets.
type Generator interface {
	// RandomCode returns a numeric code of the given length.
	RandomCode(length int) string
	// RandomSecret returns a base32 secret of the given length, suitable for
	// single-use link tokens.
	RandomSecret(length int) string
}

type GOTPGenerator struct{}

func NewGOTPGenerator() *GOTPGenerator {
	return &GOTPGenerator{}
}

func (g *GOTPGenerator) RandomCode(length int) string {
	hotp := gotp.NewHOTP(gotp.RandomSecret(16), length, nil)
	return hotp.At(0)
}

func (g *GOTPGenerator) RandomSecret(length int) string {
	return gotp.RandomSecret(length)
}
