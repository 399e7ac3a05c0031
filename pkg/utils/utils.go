package utils

import (
	"fmt"
	"golang-quant/pkg/logger"
	"runtime/debug"
)

// GoSafe runs the given function in a new goroutine and recovers from any panic.
func GoSafe(log *logger.Logger, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Panic recovered in goroutine",
					logger.Field("panic", r),
					logger.StringField("stack", string(debug.Stack())),
				)
			}
		}()
		fn()
	}()
}

// SafeCall runs fn and converts a panic into an error.
func SafeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// FormatPercentage renders a fraction (0.125) as "12.50%".
func FormatPercentage(value float64) string {
	return fmt.Sprintf("%.2f%%", value*100)
}
