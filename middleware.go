package sambung

import "context"

// chain builds the middleware pipeline around base, applying middleware in
// reverse so the first configured middleware runs outermost.
func chain(middleware []Middleware, base CallFunc) CallFunc {
	current := base
	for i := len(middleware) - 1; i >= 0; i-- {
		mw := middleware[i]
		next := current
		current = func(ctx context.Context, env *Envelope) (*Result, error) {
			return mw(ctx, env, next)
		}
	}
	return current
}

// AuthInjection returns the middleware that stamps the current session's
// identity onto the envelope before it is sent, unless the caller already
// supplied one in the payload. With no provider, or no active session, the
// envelope passes through untouched.
func AuthInjection(provider IdentityProvider) Middleware {
	return func(ctx context.Context, env *Envelope, next CallFunc) (*Result, error) {
		if provider != nil && env.AuthIdentity == "" {
			if identity, ok := provider.CurrentIdentity(); ok {
				env.AuthIdentity = identity
			}
		}
		return next(ctx, env)
	}
}
