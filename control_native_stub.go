//go:build !linux && !darwin

package fleet

import (
	"context"
	"time"
)

// NativeControl is not available on this platform
type NativeControl struct {
	RetryUnit  time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// NewNativeControl creates a NativeControl that always fails with ErrUnsupported
func NewNativeControl() *NativeControl {
	return &NativeControl{}
}

// Run returns ErrUnsupported
func (c *NativeControl) Run(_ context.Context, _ *Request) (Outcome, error) {
	return OutcomeTrouble, ErrUnsupported
}
