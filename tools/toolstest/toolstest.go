// Package toolstest provides tool doubles for exercising the protocol and
// transport layers: canned results, scripted failures, and slow tools for
// interrupt races.
package toolstest

import (
	"time"

	"github.com/ideworks/mcpgate/tools"
)

// Static returns a tool that echoes a fixed result.
func Static(name, result string, responseType tools.ResponseType) tools.Tool {
	return tools.NewFunc(name, "test tool "+name,
		func(map[string]string) (string, error) { return result, nil },
		tools.WithResponseType(responseType),
	)
}

// Failing returns a tool whose execution always fails with err.
func Failing(name string, err error) tools.Tool {
	return tools.NewFunc(name, "failing test tool",
		func(map[string]string) (string, error) { return "", err },
	)
}

// Slow returns a tool that sleeps for d before returning result. Used to
// hold a call in flight while a test fires an interrupt.
func Slow(name string, d time.Duration, result string) tools.Tool {
	return tools.NewFunc(name, "slow test tool",
		func(map[string]string) (string, error) {
			time.Sleep(d)
			return result, nil
		},
	)
}

// Capture returns a tool that records the flattened params it was invoked
// with into out before returning result.
func Capture(name string, out *map[string]string, result string) tools.Tool {
	return tools.NewFunc(name, "capturing test tool",
		func(params map[string]string) (string, error) {
			*out = params
			return result, nil
		},
	)
}
