/*
Package authsdk is the Go client for the farmportal authentication service.

# SDKClient vs Session

SDKClient covers the unauthenticated endpoints and starts sessions:

	client := authsdk.NewSDKClient("https://auth.example.com")

	health, err := client.GetReadiness(ctx)

	session, err := client.Login(ctx, "farmer@example.com", "password")

A Session carries the access and refresh tokens and refreshes the access
token shortly before it expires:

	me, err := session.Me(ctx)

	// Step up: request a challenge, then verify a TOTP code.
	_, err = session.MFAChallenge(ctx)
	err = session.VerifyTOTP(ctx, code)

	overview, err := session.AdminOverview(ctx)

	err = session.Logout(ctx)

# Errors

Every non-2xx response is returned as an *APIError carrying the HTTP status
and the service's error code:

	var apiErr *authsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Code == authsdk.ErrorCodeForbidden {
		// role not allowed
	}

The predefined errors (ErrInvalidCredentials, ErrForbidden, ...) match with
errors.Is on code and status.
*/
package authsdk
