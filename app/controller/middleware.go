package controller

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
)

const principalContextKey = "novapay.principal"

type merchantAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*service.Principal, error)
}

// MerchantAuthMiddleware resolves the X-API-Key header to a merchant
// principal and rejects the request when it does not resolve.
type MerchantAuthMiddleware struct {
	auth merchantAuthenticator
	responder
}

func NewMerchantAuthMiddleware(auth merchantAuthenticator) *MerchantAuthMiddleware {
	return &MerchantAuthMiddleware{
		auth:      auth,
		responder: newResponder(nil, 0, "merchant-auth"),
	}
}

func (m *MerchantAuthMiddleware) RequireMerchant(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		principal, err := m.auth.Authenticate(ctx.Request().Context(), ctx.Request().Header.Get(HeaderAPIKey))
		if err != nil {
			return m.write(ctx, m.failure(ctx, "authenticate", err, ""))
		}

		ctx.Set(principalContextKey, principal)
		return next(ctx)
	}
}

func principalFrom(ctx echo.Context) *service.Principal {
	principal, _ := ctx.Get(principalContextKey).(*service.Principal)
	return principal
}
