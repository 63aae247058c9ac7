package initialization

import (
	"time"

	"github.com/jarvis/MissionControl/api/internal/logging"
)

/* BootstrapMetrics tracks how long each startup step took */
type BootstrapMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
	Steps           map[string]time.Duration
	TotalSteps      int
	SuccessfulSteps int
	FailedSteps     int
}

/* NewBootstrapMetrics creates a new metrics tracker */
func NewBootstrapMetrics() *BootstrapMetrics {
	return &BootstrapMetrics{
		StartTime: time.Now(),
		Steps:     make(map[string]time.Duration),
	}
}

/* Finish marks the bootstrap as complete and calculates final metrics */
func (bm *BootstrapMetrics) Finish() {
	bm.EndTime = time.Now()
	bm.Duration = bm.EndTime.Sub(bm.StartTime)
}

/* LogMetrics logs the bootstrap metrics */
func (bm *BootstrapMetrics) LogMetrics(logger *logging.Logger) {
	fields := map[string]interface{}{
		"total_duration":   bm.Duration.String(),
		"total_steps":      bm.TotalSteps,
		"successful_steps": bm.SuccessfulSteps,
		"failed_steps":     bm.FailedSteps,
	}
	for name, d := range bm.Steps {
		fields[name+"_duration"] = d.String()
	}
	logger.Info("Bootstrap metrics", fields)
}

/* TrackStep tracks a step execution */
func (bm *BootstrapMetrics) TrackStep(name string, duration time.Duration, success bool) {
	bm.TotalSteps++
	bm.Steps[name] = duration
	if success {
		bm.SuccessfulSteps++
	} else {
		bm.FailedSteps++
	}
}
