// Package firebase adapts the Identity Toolkit v3 REST API, the backend of
// Firebase Authentication, to the authweb.IdentityProvider interface.
//
// Point Config.Endpoint at the auth emulator for local development.
package firebase
