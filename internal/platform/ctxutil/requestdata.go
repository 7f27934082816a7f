package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

type requestDataKey struct{}

// RequestData identifies the actor behind a request.
type RequestData struct {
	UserID uuid.UUID
	Role   string
}

func (rd *RequestData) IsAdmin() bool {
	return rd != nil && rd.Role == RoleAdmin
}

// CanActFor reports whether the actor may mutate records owned by ownerID.
func (rd *RequestData) CanActFor(ownerID uuid.UUID) bool {
	if rd == nil || rd.UserID == uuid.Nil {
		return false
	}
	return rd.IsAdmin() || rd.UserID == ownerID
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
