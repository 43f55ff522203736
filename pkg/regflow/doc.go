// Package regflow implements the event-registration flow: mode resolution,
// the dynamic field schema, OTP verification, verified-session persistence,
// existing-registration lookup and submission. The server side of the platform
// imports the mode and schema vocabulary from here so client and server
// evaluate the same rules; the Flow type is the embeddable client coordinator.
package regflow
