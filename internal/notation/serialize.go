package notation

import (
	"fmt"
	"strings"
)

const namePlies = 6

// Serialize numbers a move list that starts with White on move 1.
func Serialize(sans []string) string {
	return SerializeFrom(sans, 1, false)
}

// SerializeFrom numbers sans starting at moveNum; blackFirst marks a list
// whose first ply is Black's ("12... Qd7 13. Rfe1").
func SerializeFrom(sans []string, moveNum int, blackFirst bool) string {
	if moveNum < 1 {
		moveNum = 1
	}
	var sb strings.Builder
	white := !blackFirst
	for idx, mv := range sans {
		if idx == 0 && !white {
			sb.WriteString(fmt.Sprintf("%d...", moveNum))
		} else if white {
			if idx != 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(fmt.Sprintf("%d.", moveNum))
		}
		sb.WriteString(" ")
		sb.WriteString(strings.TrimSpace(mv))
		if !white {
			moveNum++
		}
		white = !white
	}
	return sb.String()
}

// DisplayName labels an exercise from the trainee side and its first three
// move pairs, e.g. "White: 1. e4 e5 2. Nf3 Nc6 3. Bb5 a6".
func DisplayName(color string, sans []string) string {
	label := "White"
	if strings.EqualFold(strings.TrimSpace(color), "black") {
		label = "Black"
	}
	if len(sans) == 0 {
		return label + ": empty line"
	}
	n := len(sans)
	if n > namePlies {
		n = namePlies
	}
	return label + ": " + Serialize(sans[:n])
}
