package grpcserver

import (
	"context"
)

type ctxKey string

const deviceKey ctxKey = "dc.device"

// WithDevice stores the authenticated device name in context.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey, device)
}

// DeviceFromCtx fetches the device name from context.
func DeviceFromCtx(ctx context.Context) (string, bool) {
	v := ctx.Value(deviceKey)
	if v == nil {
		return "", false
	}
	d, ok := v.(string)
	return d, ok && d != ""
}
