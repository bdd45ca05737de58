// Package tcrt is a client for the TCRT (Test Case Repository Tool)
// authentication API: challenge, login, current user, token validation,
// logout and team listing.
//
// One Client holds one cookie jar, so a sequence of calls behaves like a
// single browser session against TCRT.
package tcrt
