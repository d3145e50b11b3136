package ai

import "strings"

var priorities = [...]string{PriorityHigh, PriorityMedium, PriorityLow}

// ParseSuggestions splits a numbered-list answer ("1. Title" followed by description lines)
// into items. Lines before the first numbered line are ignored; malformed input yields fewer items.
func ParseSuggestions(text string) []Item {
	items := make([]Item, 0, len(priorities))
	var cur *Item

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if title, ok := numberedTitle(line); ok {
			if cur != nil {
				items = append(items, *cur)
			}
			cur = &Item{Title: title, Priority: priorityAt(len(items))}
			continue
		}
		if cur == nil {
			continue
		}
		if cur.Description == "" {
			cur.Description = line
		} else {
			cur.Description += "\n" + line
		}
	}
	if cur != nil {
		items = append(items, *cur)
	}
	return items
}

var itemPrefixes = [...]string{"1.", "2.", "3."}

// numberedTitle reports whether the line starts an item and returns the rest of the line.
// Only "1.", "2." and "3." start items; other numbering stays in the description.
func numberedTitle(line string) (string, bool) {
	for _, prefix := range itemPrefixes {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	return "", false
}

func priorityAt(idx int) string {
	if idx < len(priorities) {
		return priorities[idx]
	}
	return PriorityLow
}
