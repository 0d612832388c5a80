package shelf

// Phase is the externally visible state of the low-stock alert.
type Phase string

const (
	PhaseNormal   Phase = "normal"
	PhaseAlerting Phase = "alerting"
)

// AlertState is a dwell-time filter over the smoothed count. The alert asserts
// once the average has been below the minimum for delay consecutive frames and
// clears on the first frame it is back at or above the minimum.
type AlertState struct {
	delay   int
	counter int
	alert   bool
}

// NewAlertState creates an alert filter requiring delay consecutive
// under-threshold frames. A delay below 1 is raised to 1.
func NewAlertState(delay int) *AlertState {
	if delay < 1 {
		delay = 1
	}
	return &AlertState{delay: delay}
}

// Observe feeds one frame's average and returns the alert for that frame.
func (a *AlertState) Observe(avg float64, minStock int) bool {
	if avg < float64(minStock) {
		a.counter++
	} else {
		a.counter = 0
	}
	a.alert = a.counter >= a.delay
	return a.alert
}

// Counter returns the number of consecutive under-threshold frames.
func (a *AlertState) Counter() int { return a.counter }

// Alert returns the alert value computed by the last Observe.
func (a *AlertState) Alert() bool { return a.alert }

// Phase returns PhaseAlerting while the alert is asserted.
func (a *AlertState) Phase() Phase {
	if a.alert {
		return PhaseAlerting
	}
	return PhaseNormal
}
