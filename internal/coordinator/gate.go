package coordinator

import (
	"strings"

	"github.com/Iron-Ham/redgreen/internal/cycle"
)

// VerdictKind is the gate's ruling over one phase's output.
type VerdictKind int

const (
	// VerdictPass advances the cycle along its forward edge.
	VerdictPass VerdictKind = iota

	// VerdictFail counts a strike; the cycle retries the phase or blocks.
	VerdictFail

	// VerdictRegress sends work back along a backward edge.
	VerdictRegress
)

// Verdict is the parsed outcome of one phase execution.
type Verdict struct {
	Kind   VerdictKind
	Target cycle.Phase // regression target, set only for VerdictRegress
	Reason string
}

// GateFunc evaluates a phase's output and decides where the cycle goes
// next. The engine applies the verdict; illegal regressions count as
// failures.
type GateFunc func(phase cycle.Phase, output string) Verdict

// verdictMarker prefixes the line agents use to report their gate
// ruling. Prompts instruct the agent to end with one.
const verdictMarker = "VERDICT:"

// ParseVerdict is the default gate: it scans the output for the last
// marker line and maps it onto a verdict.
//
//	VERDICT: pass
//	VERDICT: fail <reason>
//	VERDICT: regress TEST_RED <reason>
//
// Output without a marker passes; an agent that finished its work and
// said nothing else is treated as done with the phase.
func ParseVerdict(phase cycle.Phase, output string) Verdict {
	line, ok := lastVerdictLine(output)
	if !ok {
		return Verdict{Kind: VerdictPass}
	}

	word, rest := splitWord(line)
	switch strings.ToLower(word) {
	case "pass":
		return Verdict{Kind: VerdictPass, Reason: rest}
	case "fail":
		reason := rest
		if reason == "" {
			reason = "gate reported failure"
		}
		return Verdict{Kind: VerdictFail, Reason: reason}
	case "regress":
		target, reason := splitWord(rest)
		if target == "" {
			return Verdict{Kind: VerdictFail, Reason: "regress verdict without a target phase"}
		}
		if reason == "" {
			reason = "gate sent work back"
		}
		return Verdict{
			Kind:   VerdictRegress,
			Target: cycle.Phase(strings.ToUpper(target)),
			Reason: reason,
		}
	default:
		return Verdict{Kind: VerdictFail, Reason: "unrecognized verdict: " + word}
	}
}

// lastVerdictLine returns the payload of the last marker line. Later
// markers win so an agent can correct itself mid-output.
func lastVerdictLine(output string) (string, bool) {
	var payload string
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, verdictMarker) {
			continue
		}
		payload = strings.TrimSpace(strings.TrimPrefix(line, verdictMarker))
		found = true
	}
	return payload, found
}

// splitWord splits off the first whitespace-delimited word.
func splitWord(s string) (word, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
