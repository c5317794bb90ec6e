package monitor

import (
	"regexp"
	"strconv"
	"strings"
)

// Progress lines look like "step 500 loss 0.31" in the trainer output.
// The gate requires both tokens before any extraction is attempted, so
// unrelated lines mentioning "step" alone never move progress.
var (
	stepRe = regexp.MustCompile(`(?i)step\s*(\d+)`)
	lossRe = regexp.MustCompile(`(?i)loss[\s:=]*([0-9]*\.?[0-9]+)`)
)

// parseStep extracts the step number from a trainer output line. It
// returns false for lines that are not progress lines; malformed lines
// are never an error, monitoring has to survive anything the trainer
// prints.
func parseStep(line string) (int, bool) {
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "step") || !strings.Contains(lower, "loss") {
		return 0, false
	}
	m := stepRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	step, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return step, true
}

// parseLoss extracts the loss value from a progress line
func parseLoss(line string) (float64, bool) {
	m := lossRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	loss, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return loss, true
}

// progressFor converts a step number into a percentage of totalSteps,
// capped at 100.
func progressFor(step, totalSteps int) float64 {
	if totalSteps <= 0 {
		totalSteps = 1000
	}
	p := float64(step) / float64(totalSteps) * 100
	if p > 100 {
		p = 100
	}
	return p
}
