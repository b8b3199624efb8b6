package requestdata

import (
	"context"

	"github.com/google/uuid"
)

var requestDataKey = struct{}{}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	val := ctx.Value(requestDataKey)
	if rd, ok := val.(*RequestData); ok {
		return rd
	}
	return nil
}

// RequestData carries the resolved principal. TenantID and UserID are always
// passed explicitly through context, never inferred from ambient state.
type RequestData struct {
	TokenString  string
	RefreshToken string
	TenantID     uuid.UUID
	UserID       uuid.UUID
}
