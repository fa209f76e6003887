// Package jwt issues session and pre-second-factor tokens and decodes them
// into a typed status: ok, expired or malformed.
package jwt
