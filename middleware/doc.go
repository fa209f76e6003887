// Package middleware adapts mtAuth.Engine to net/http.
//
// # Handlers
//
//   - [ClientInfo] records client IP and User-Agent in the request context.
//   - [RequireSession] validates the bearer session token.
//   - [RequireTwoFactor] additionally requires two-factor to be enabled.
//
// Rejections are written as mtAuth.Result JSON with the matching status code.
// Authentication decisions are delegated to the Engine.
package middleware
