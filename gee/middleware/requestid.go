package middleware

import (
	"github.com/google/uuid"

	"repfinds.local/gee"
)

const requestIDHeader = "X-Request-ID"

// 太长的外部 ID 不采用，避免日志被灌爆
const maxRequestIDLen = 128

// ReqID 沿用上游传来的 X-Request-ID，没有就生成一个
func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := ctx.Req.Header.Get(requestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
			ctx.Req.Header.Set(requestIDHeader, id)
		}
		ctx.SetHeader(requestIDHeader, id)

		ctx.Next()
	}
}
