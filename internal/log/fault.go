package log

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// FaultReport is a structured panic record for the core task's top-level
// recover. Grounded on common/faults.FaultReport, narrowed to the fields
// that matter for a single-process hub: no Hardware/Mem sub-reports, since
// Igloo does not run on appliance hardware.
type FaultReport struct {
	Component string
	Reason    interface{}
	Stack     string
}

// Log renders the fault as a structured error-level entry.
func (f FaultReport) Log(logger *zap.Logger) {
	logger.Error("recovered panic",
		zap.String("component", f.Component),
		zap.Any("reason", f.Reason),
		zap.String("stack", f.Stack),
	)
}

// Recover captures a panic at component into a FaultReport. Call from a
// deferred position: `defer log.Recover("core", logger, restart)`. restart
// is invoked after the report is logged, typically to relaunch the
// recovering goroutine.
func Recover(component string, logger *zap.Logger, restart func()) {
	if r := recover(); r != nil {
		FaultReport{Component: component, Reason: r, Stack: string(debug.Stack())}.Log(logger)
		if restart != nil {
			restart()
		}
	}
}
