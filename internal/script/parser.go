/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

const fence = "```"

// Patterns
var (
	// **①ヒナ**（90字）  ordinal ①..㉚ optionally followed by digits, then the name.
	headingExpr = `\*\*([①-⑳㉑-㉚]?[0-9０-９]*)([^*]+)\*\*[（(]([0-9０-９]+)字[）)]`

	reHeading       = regexp.MustCompile(headingExpr)
	reFencedBlock   = regexp.MustCompile(headingExpr + `[\s\p{Zs}]*` + fence + "([^`]*)" + fence)
	reFenceAnywhere = regexp.MustCompile(fence + "([^`]*)" + fence)
	reQuotedTriple  = regexp.MustCompile(`"([^"]+)"\t([^\t]+)\t([0-9０-９]+)`)
	reQuotedPair    = regexp.MustCompile(`"([^"]+)"\t([^\t\n]+)`)
	reTabTriple     = regexp.MustCompile(`^([^\t\n]+)\t([^\t\n]+)\t([0-9０-９]+)$`)
	reTabPair       = regexp.MustCompile(`^([^\t\n]+)\t([^\t\n]+)$`)
	reAnnotation    = regexp.MustCompile(`[（(][^）)]*[）)]|[【\[][^】\]]*[】\]]`)
)

type matcher func(text string) []Dialogue

// notations lists the recognized conventions in priority order. The first one
// producing at least one dialogue wins; results are never merged.
var notations = []struct {
	kind  Notation
	match matcher
}{
	{NotationFencedBlock, matchFencedBlocks},
	{NotationQuotedTriple, matchQuotedTriples},
	{NotationQuotedPair, matchQuotedPairs},
	{NotationTabTriple, matchLines(reTabTriple, true)},
	{NotationTabPair, matchLines(reTabPair, false)},
	{NotationLooseHeading, matchLooseHeadings},
}

// Parse extracts the dialogue lines of a script.
// Supported notations, in priority order:
//   - **①NAME**（N字） followed by a ``` fenced block holding the line
//   - "NAME"<TAB>TEXT<TAB>N   (NAME may wrap, as pasted from a spreadsheet cell)
//   - "NAME"<TAB>TEXT
//   - NAME<TAB>TEXT<TAB>N     one per line
//   - NAME<TAB>TEXT           one per line
//   - **①NAME**（N字） followed by a loose line of text
//
// Unrecognized input yields an empty result, never an error.
func Parse(input string) []Dialogue {
	d, _ := Detect(input)
	return d
}

// Detect is Parse that also reports the notation the script was recognized as.
func Detect(input string) ([]Dialogue, Notation) {
	text := strings.ReplaceAll(input, "\r\n", "\n")
	for _, n := range notations {
		if out := n.match(text); len(out) > 0 {
			return out, n.kind
		}
	}
	return nil, NotationNone
}

// ParseFile reads a UTF-8 script from disk and parses it.
func ParseFile(path string) ([]Dialogue, Notation, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, NotationNone, fmt.Errorf("read script: %w", err)
	}
	d, n := Detect(strings.TrimPrefix(string(b), "\ufeff"))
	return d, n, nil
}

// CleanCharacterName drops annotations such as （回想） or 【電話】 from a speaker name.
func CleanCharacterName(name string) string {
	return strings.TrimSpace(reAnnotation.ReplaceAllString(name, ""))
}

// collector numbers dialogues by the order they are accepted.
type collector struct {
	out []Dialogue
}

// add appends a dialogue; count < 0 means "not declared".
func (c *collector) add(character, text string, count int) {
	character = strings.TrimSpace(character)
	text = strings.TrimSpace(text)
	if character == "" || text == "" {
		return
	}
	if count < 0 {
		count = utf8.RuneCountInString(text)
	}
	c.out = append(c.out, Dialogue{
		Index:     len(c.out) + 1,
		Character: character,
		Text:      text,
		CharCount: count,
	})
}

// parseCount reads a declared count written in half- or full-width digits.
func parseCount(s string) int {
	n, err := strconv.Atoi(width.Narrow.String(strings.TrimSpace(s)))
	if err != nil {
		return -1
	}
	return n
}

func matchFencedBlocks(text string) []Dialogue {
	var c collector
	for _, m := range reFencedBlock.FindAllStringSubmatch(text, -1) {
		c.add(m[2], m[4], parseCount(m[3]))
	}
	return c.out
}

func quotedName(raw string) string {
	raw = strings.ReplaceAll(raw, "\r", "")
	return CleanCharacterName(strings.ReplaceAll(raw, "\n", ""))
}

func matchQuotedTriples(text string) []Dialogue {
	var c collector
	for _, m := range reQuotedTriple.FindAllStringSubmatch(text, -1) {
		c.add(quotedName(m[1]), m[2], parseCount(m[3]))
	}
	return c.out
}

func matchQuotedPairs(text string) []Dialogue {
	var c collector
	for _, m := range reQuotedPair.FindAllStringSubmatch(text, -1) {
		c.add(quotedName(m[1]), m[2], -1)
	}
	return c.out
}

func matchLines(re *regexp.Regexp, counted bool) matcher {
	return func(text string) []Dialogue {
		var c collector
		for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			count := -1
			if counted {
				count = parseCount(m[3])
			}
			c.add(CleanCharacterName(m[1]), m[2], count)
		}
		return c.out
	}
}

// matchLooseHeadings splits the text at every heading. Each heading's line is the
// fenced block inside its section if there is one, else the first non-empty line.
// Headings without a name or a line are dropped.
func matchLooseHeadings(text string) []Dialogue {
	locs := reHeading.FindAllStringSubmatchIndex(text, -1)
	var c collector
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		name := CleanCharacterName(text[loc[4]:loc[5]])
		count := parseCount(text[loc[6]:loc[7]])
		c.add(name, sectionLine(text[loc[1]:end]), count)
	}
	return c.out
}

func sectionLine(section string) string {
	if m := reFenceAnywhere.FindStringSubmatch(section); m != nil {
		return strings.TrimSpace(m[1])
	}
	first, _, _ := strings.Cut(strings.TrimSpace(section), "\n")
	return strings.TrimSpace(first)
}
