package secctx

import (
	"context"
	"net/http"

	"github.com/shaj13/go-guardian/v2/auth"
)

type SecurityContext interface {
	getUserId() string
	IsSystem() bool
}

const anonymousUserId = "anonymous"

func MakeUserContext(r *http.Request) context.Context {
	userId := anonymousUserId
	if user := auth.User(r); user != nil && user.GetID() != "" {
		userId = user.GetID()
	}
	return context.WithValue(r.Context(), "secCtx", securityContextImpl{
		userId:   userId,
		isSystem: false,
	})
}

func MakeSysadminContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, "secCtx", securityContextImpl{userId: "system", isSystem: true})
}

type securityContextImpl struct {
	userId   string
	isSystem bool
}

func (ctx securityContextImpl) getUserId() string { return ctx.userId }

func (ctx securityContextImpl) IsSystem() bool { return ctx.isSystem }

func IsSystem(ctx context.Context) bool {
	val := ctx.Value("secCtx")
	if val == nil {
		return false
	}
	return val.(securityContextImpl).isSystem
}

func GetUserId(ctx context.Context) string {
	val := ctx.Value("secCtx")
	if val == nil {
		return ""
	}
	return val.(securityContextImpl).getUserId()
}
