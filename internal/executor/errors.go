package executor

import (
	"fmt"

	"mediaflow/internal/processor"
)

// ConfigError means a processor reference could not be turned into a ready instance:
// unknown class, bad arguments, wrong variant or a failing Init.
type ConfigError struct {
	Ref processor.Ref
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("executor: configure %s: %v", e.Ref, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// failure is the classified outcome of a failed processor call.
type failure struct {
	message string
	fatal   bool
}

// classify maps a result onto an error event, honoring the FatalErrors trait. A failed
// result without an error gets the constructor's placeholder message.
func classify(res processor.Result, traits processor.Traits) (failure, bool) {
	switch res.Outcome {
	case processor.OutcomeRecoverable:
		res = processor.Recoverable(res.Err)
	case processor.OutcomeFatal:
		res = processor.Fatal(res.Err)
	default:
		return failure{}, false
	}
	return failure{
		message: res.Err.Error(),
		fatal:   res.Outcome == processor.OutcomeFatal || traits.FatalErrors,
	}, true
}

func classifyErr(err error, traits processor.Traits) (failure, bool) {
	if err == nil {
		return failure{}, false
	}
	return classify(processor.FromError(err), traits)
}
