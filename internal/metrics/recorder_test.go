package metrics

import (
	"time"
)

// testRecorder counts calls for assertions in other packages' tests.
type testRecorder struct {
	stageDurations map[string]int
	fileResults    map[ResultLabel]int
	runDurations   int
	runOutcomes    map[RunOutcomeLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{
		stageDurations: map[string]int{},
		fileResults:    map[ResultLabel]int{},
		runOutcomes:    map[RunOutcomeLabel]int{},
	}
}

func (t *testRecorder) ObserveStageDuration(stage string, _ time.Duration) {
	t.stageDurations[stage]++
}
func (t *testRecorder) ObserveRunDuration(_ time.Duration)    { t.runDurations++ }
func (t *testRecorder) IncFileResult(result ResultLabel)      { t.fileResults[result]++ }
func (t *testRecorder) IncRunOutcome(outcome RunOutcomeLabel) { t.runOutcomes[outcome]++ }

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*PrometheusRecorder)(nil)
	_ Recorder = newTestRecorder()
)
