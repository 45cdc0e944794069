package editor

import "strings"

// Measurer reports the rendered extent of a text run. The frontend plugs in
// a real font metrics implementation; headless callers and tests use the
// default approximation.
type Measurer interface {
	Measure(text string, fontSize float64) (w, h float64)
}

// approxMeasurer estimates extents from the font size alone: a 0.6em glyph
// advance and 1.2em line height, close enough for the cached W/H that
// selection and hit-testing read.
type approxMeasurer struct{}

const (
	approxAdvance    = 0.6
	approxLineHeight = 1.2
)

func (approxMeasurer) Measure(text string, fontSize float64) (w, h float64) {
	lines := strings.Split(text, "\n")
	longest := 0
	for _, line := range lines {
		if n := len([]rune(line)); n > longest {
			longest = n
		}
	}
	if longest == 0 {
		// An empty run still needs a caret-sized box.
		longest = 1
	}
	return float64(longest) * fontSize * approxAdvance,
		float64(len(lines)) * fontSize * approxLineHeight
}
