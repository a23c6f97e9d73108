package quota

// Recorder receives quota telemetry.
type Recorder interface {
	QuotaConsumed(capability, plan string)
	QuotaDenied(capability, plan string)
	Rollover()
}
