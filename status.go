package warden

// FinalStatus describes how an execution ended.
type FinalStatus string

const (
	// StatusRunning means the execution has not finished yet.
	StatusRunning FinalStatus = "running"

	// StatusSuccess means the execution completed normally.
	StatusSuccess FinalStatus = "success"

	// StatusError means the execution ended with a hard failure. Units in
	// this status are excluded from scoring and count toward the batch
	// failure threshold.
	StatusError FinalStatus = "error"

	// StatusLimitExit means a limit ended the execution. Units in this
	// status are still scored normally and never count toward the batch
	// failure threshold.
	StatusLimitExit FinalStatus = "limit_exit"

	// StatusCanceled means the execution was canceled from outside
	// (batch abort or caller cancellation), not by one of its own guards.
	StatusCanceled FinalStatus = "canceled"
)
