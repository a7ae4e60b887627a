package middleware

import "context"

type holderKey struct{}

type ownerHolder struct {
	owner string
}

func withOwnerHolder(ctx context.Context, h *ownerHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func ownerHolderFrom(ctx context.Context) *ownerHolder {
	h, _ := ctx.Value(holderKey{}).(*ownerHolder)
	return h
}
