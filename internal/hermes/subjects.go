package hermes

const (
	SubjectRunWildcard = "podium.run.>"
	SubjectRunRequest  = "podium.request.run"

	StreamName   = "PODIUM_EVENTS"
	StreamMaxAge = "168h" // 7 days
)

func SubjectRunCreated(runID string) string   { return "podium.run." + runID + ".created" }
func SubjectRunStarted(runID string) string   { return "podium.run." + runID + ".started" }
func SubjectRunExpanded(runID string) string  { return "podium.run." + runID + ".expanded" }
func SubjectRunSolved(runID string) string    { return "podium.run." + runID + ".solved" }
func SubjectRunExhausted(runID string) string { return "podium.run." + runID + ".exhausted" }
func SubjectRunFailed(runID string) string    { return "podium.run." + runID + ".failed" }
func SubjectRunRetry(runID string) string     { return "podium.run." + runID + ".retry" }
