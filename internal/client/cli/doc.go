// Package cli implements tflicctl, the command-line client of the TFlic
// authentication API.
//
// Commands:
//
//	register   create an account and sign in
//	authorize  sign in with login and password
//	refresh    exchange the saved token pair for a new one
//	whoami     show the signed-in account
//	rename     change the display name of the signed-in account
//	logout     forget the saved session
//	health     query the gRPC health endpoint
//
// The last token pair is kept in a session file so later commands can use
// it. Passwords are read from the terminal without echo.
package cli
