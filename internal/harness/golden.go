package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/verayang01/clocksim/internal/event"
)

// RenderTrace renders a trace as stable text, one line per entry. Wall
// time is deliberately excluded: it is the only nondeterministic field
// in a scenario run.
func RenderTrace(entries []event.Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %3d %-8s clock=%-4d", e.Node, e.Seq, e.Kind, e.Clock)
		switch e.Kind {
		case event.KindReceive:
			fmt.Fprintf(&b, " from=%s msg=%s msg_clock=%d queue_len=%d",
				e.Peer, e.MessageID, e.MessageClock, e.QueueLen)
		case event.KindSend:
			target := e.Peer
			if target == "" {
				target = "*"
			}
			fmt.Fprintf(&b, " to=%s msg=%s", target, e.MessageID)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its rendered trace
// against testdata/golden/<name>.golden. A missing golden file is
// recorded on first run; regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) (*Result, error) {
	t.Helper()

	result, err := RunScenario(s)
	if err != nil {
		return nil, err
	}

	rendered := RenderTrace(result.Entries)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)

	fixture := filepath.Join("testdata", "golden", s.Name+".golden")
	if _, statErr := os.Stat(fixture); os.IsNotExist(statErr) {
		// First run records the baseline; later runs diff against it.
		if err := g.Update(t, s.Name, rendered); err != nil {
			return nil, fmt.Errorf("record golden baseline: %w", err)
		}
		return result, nil
	}

	g.Assert(t, s.Name, rendered)
	return result, nil
}
