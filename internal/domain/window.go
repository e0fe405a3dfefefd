package domain

import "time"

// Window returns the programmes overlapping [from, to). A zero from or to
// leaves that side open. Input must be sorted by start; order is preserved.
func Window(programs []GuideProgram, from, to time.Time) []GuideProgram {
	out := make([]GuideProgram, 0, len(programs))
	for _, p := range programs {
		if !from.IsZero() && !p.End.After(from) {
			continue
		}
		if !to.IsZero() && !p.Start.Before(to) {
			break
		}
		out = append(out, p)
	}
	return out
}

// AiringAt returns the programme whose [Start, End) contains at.
func AiringAt(programs []GuideProgram, at time.Time) (GuideProgram, bool) {
	for _, p := range programs {
		if p.Start.After(at) {
			break
		}
		if at.Before(p.End) {
			return p, true
		}
	}
	return GuideProgram{}, false
}
