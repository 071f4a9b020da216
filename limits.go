package warden

// Limits groups the per-unit bounds so orchestration layers can pass them
// as a single value. Each field is optional; nil means no guard of that
// kind is opened. Time and Working are in seconds.
type Limits struct {
	// Time bounds wall-clock seconds.
	Time *float64

	// Working bounds productive seconds (wall time minus waiting on
	// contended resources and failed, retried requests).
	Working *float64

	// Message bounds the number of conversation messages.
	Message *float64

	// Token bounds the number of tokens.
	Token *float64
}

// ApplyLimits opens one guard per configured bound on this execution and
// returns a release func that closes them in reverse order. The release
// func must run on every exit path:
//
//	release := exec.ApplyLimits(limits)
//	defer release()
func (x *Execution) ApplyLimits(l Limits) (release func()) {
	var handles []*GuardHandle
	open := func(kind Kind, threshold *float64) {
		if threshold != nil {
			handles = append(handles, x.OpenGuard(kind, threshold))
		}
	}
	open(KindTime, l.Time)
	open(KindWorkingTime, l.Working)
	open(KindMessage, l.Message)
	open(KindToken, l.Token)

	return func() {
		for i := len(handles) - 1; i >= 0; i-- {
			handles[i].Close()
		}
	}
}
