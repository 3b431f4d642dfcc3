package controllers

import (
	"context"
	"strconv"
	"time"

	"depotbook/src/schemas"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/go-chi/jwtauth"
)

// PostToken exchanges credentials for a signed JWT whose subject is the user id.
func (c *Controller) PostToken(ctx context.Context, username, password string) (*schemas.TokenResponse, error) {
	principal, err := c.AuthService.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}

	claims := map[string]interface{}{
		"sub":      strconv.FormatUint(uint64(principal.UserID), 10),
		"username": principal.Username,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, time.Now().Add(c.TokenTTL))

	_, tokenString, err := c.TokenAuth.Encode(claims)
	if err != nil {
		return nil, err
	}
	return &schemas.TokenResponse{
		AccessToken: tokenString,
		TokenType:   "Bearer",
		ExpiresIn:   int(c.TokenTTL.Seconds()),
		UserName:    principal.Username,
		UserID:      principal.UserID,
	}, nil
}

// PrincipalFromClaims reloads the user named by a verified token.
func (c *Controller) PrincipalFromClaims(ctx context.Context, claims map[string]interface{}) (services.Principal, error) {
	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseUint(sub, 10, 64)
	if err != nil || userID == 0 {
		return services.Principal{}, utils.AuthorizationError("token has no valid subject")
	}
	return c.AuthService.LoadPrincipal(ctx, uint(userID))
}
