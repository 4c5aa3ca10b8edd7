package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// ErrNotObject is returned when an evaluated literal does not produce a value
var ErrNotObject = errors.New("literal did not evaluate to a value")

// Evaluator evaluates object literals in an isolated goja runtime.
// Each call gets a fresh runtime with no host bindings.
type Evaluator struct {
	timeout time.Duration
}

// NewEvaluator creates an evaluator that interrupts scripts after timeout
func NewEvaluator(timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	return &Evaluator{timeout: timeout}
}

// ToJSON evaluates literal and returns JSON.stringify of the result
func (e *Evaluator) ToJSON(literal string) (out string, err error) {
	vm := goja.New()
	vm.SetMaxCallStackSize(256)

	timer := time.AfterFunc(e.timeout, func() {
		vm.Interrupt("evaluation timed out")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluate literal: %v", r)
		}
	}()

	v, err := vm.RunString("JSON.stringify((" + literal + "\n))")
	if err != nil {
		return "", fmt.Errorf("evaluate literal: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", ErrNotObject
	}
	return v.String(), nil
}
