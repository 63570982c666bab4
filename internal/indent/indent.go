// Package indent detects the indentation unit of a text document.
package indent

import "strings"

type key struct {
	tabs  bool
	width int
}

type stat struct {
	uses    int
	repeats int
}

// Detect returns the dominant indentation unit of text: a run of spaces or
// tabs. It returns "" when no line is indented.
//
// Each line is compared with the previous non-blank line; a positive change
// in indentation width votes for that width. Lines with the same width as
// their predecessor reinforce the last vote. The most used width wins, ties
// going to the one with more reinforcing lines.
func Detect(text string) string {
	stats := make(map[key]*stat)
	var (
		prevWidth int
		prevTabs  bool
		last      *stat
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		tabs, width := leading(line)
		if width == 0 {
			prevWidth, prevTabs, last = 0, false, nil
			continue
		}

		delta := width - prevWidth
		if tabs != prevTabs {
			delta = width
		}
		prevWidth, prevTabs = width, tabs

		switch {
		case delta > 0:
			k := key{tabs: tabs, width: delta}
			s, ok := stats[k]
			if !ok {
				s = &stat{}
				stats[k] = s
			}
			s.uses++
			last = s
		case delta == 0 && last != nil:
			last.repeats++
		}
	}

	var (
		best   key
		bestSt *stat
	)
	for k, s := range stats {
		if bestSt == nil || better(k, s, best, bestSt) {
			best, bestSt = k, s
		}
	}
	if bestSt == nil {
		return ""
	}
	if best.tabs {
		return strings.Repeat("\t", best.width)
	}
	return strings.Repeat(" ", best.width)
}

// better orders candidates deterministically: uses, then repeats, then the
// smaller width, then spaces before tabs.
func better(k key, s *stat, bk key, bs *stat) bool {
	if s.uses != bs.uses {
		return s.uses > bs.uses
	}
	if s.repeats != bs.repeats {
		return s.repeats > bs.repeats
	}
	if k.width != bk.width {
		return k.width < bk.width
	}
	return !k.tabs && bk.tabs
}

// leading reports whether the line is tab-indented and the width of its
// leading run of its first whitespace character.
func leading(line string) (bool, int) {
	switch line[0] {
	case ' ':
		return false, len(line) - len(strings.TrimLeft(line, " "))
	case '\t':
		return true, len(line) - len(strings.TrimLeft(line, "\t"))
	default:
		return false, 0
	}
}
