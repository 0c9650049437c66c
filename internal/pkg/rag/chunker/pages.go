package chunker

import (
	"regexp"
	"strconv"
	"strings"
)

// pageMarkerRegex matches the delimiter line the extraction service emits
// when page markers are requested. Anything else is treated as content.
var pageMarkerRegex = regexp.MustCompile(`^Page (\d+)\r?$`)

// section is a page span in the cleaned text, in rune offsets.
type section struct {
	page  int
	start int
	end   int
}

// splitPages removes page marker lines from text and returns the cleaned
// runes together with one section per page. Text without markers yields a
// single section numbered 1.
func splitPages(text string) ([]rune, []section) {
	clean := make([]rune, 0, len(text))
	var (
		sections []section
		numbers  []int
		valid    = true
	)

	current := section{page: 0, start: 0}
	hasMarkers := false

	for _, line := range strings.SplitAfter(text, "\n") {
		if m := pageMarkerRegex.FindStringSubmatch(strings.TrimSuffix(line, "\n")); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n < 1 || (len(numbers) > 0 && n <= numbers[len(numbers)-1]) {
				valid = false
			}
			current.end = len(clean)
			if hasMarkers || current.end > current.start {
				sections = append(sections, current)
			}
			numbers = append(numbers, n)
			hasMarkers = true
			current = section{page: len(numbers), start: len(clean)}
			continue
		}
		clean = append(clean, []rune(line)...)
	}
	current.end = len(clean)
	sections = append(sections, current)

	if !hasMarkers {
		sections[0].page = 1
		return clean, sections
	}

	// page holds the 1-based marker ordinal until numbering is resolved;
	// 0 marks the preamble before the first marker.
	for i := range sections {
		ordinal := sections[i].page
		if ordinal == 0 {
			ordinal = 1
		}
		if valid {
			sections[i].page = numbers[ordinal-1]
		} else {
			sections[i].page = ordinal
		}
	}
	return clean, sections
}
