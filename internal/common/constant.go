package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the access token.
	AccessTokenHeaderName = "access_token"

	AccessTokenCookieName  = "accessToken"
	RefreshTokenCookieName = "refreshToken"
)
