package harness

import "fmt"

// TextReporter prints scenario outcomes as they complete, adapted from
// the teacher's TextReporter down to the one format this repo needs —
// the JSON and JUnit variants it also offered have no consumer here.
type TextReporter struct {
	passed int
	failed int
}

// NewTextReporter returns a reporter with a fresh pass/fail tally.
func NewTextReporter() *TextReporter { return &TextReporter{} }

func (r *TextReporter) Passed(result Result) {
	r.passed++
	fmt.Printf("PASS %s (%s)\n", result.Name, result.Duration)
}

func (r *TextReporter) Failed(result Result) {
	r.failed++
	fmt.Printf("FAIL %s (%s)\n", result.Name, result.Duration)
	for _, f := range result.Failures {
		fmt.Printf("       %s\n", f)
	}
}

func (r *TextReporter) Summary(total int, allPassed bool) {
	fmt.Printf("%d/%d scenarios passed\n", r.passed, total)
	if !allPassed {
		fmt.Println("FAILED")
	}
}
