package credentials

import "context"

type contextKey string

const credentialContextKey contextKey = "medullar_credential"

func ContextWithCredential(ctx context.Context, cred *Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

func FromContext(ctx context.Context) (*Credential, bool) {
	cred, ok := ctx.Value(credentialContextKey).(*Credential)
	return cred, ok
}
