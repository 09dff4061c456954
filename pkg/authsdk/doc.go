/*
Package authsdk provides a client SDK for the wallet authentication service.

# Overview

SDKClient wraps the token endpoints and the small set of authenticated user
endpoints. It holds no session state: callers keep the returned token pair
and exchange the refresh token when the access token expires.

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Channel client credentials (HTTP Basic bundle id and secret)
	pair, err := client.ClientCredentials(ctx, "com.bink.wallet", secret, "alice")

	// Partner signed JWT
	pair, err = client.B2B(ctx, partnerJWT)

	// Refresh
	pair, err = client.Refresh(ctx, pair.RefreshToken)

	// Identity behind an access token
	me, err := client.Me(ctx, pair.AccessToken)

Set Wallet to send token requests to /v2/wallet_token, which expects the
grant nested under a "token" object.

# Errors

Token endpoint failures are returned as *OAuth2Error and match the
predefined values with errors.Is:

	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// re-authenticate with the partner
	}

Resource endpoint failures are returned as *ResourceError carrying the
error slug (INVALID_TOKEN, EXPIRED_TOKEN, FORBIDDEN, ...).
*/
package authsdk
