/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Dialogue is a single spoken line recovered from a script.
// Index is 1-based and contiguous within one parse result.
// CharCount is the count declared by the script, or the rune length of Text
// when the notation carries none.
type Dialogue struct {
	Index     int
	Character string
	Text      string
	CharCount int
}

// Notation identifies which textual convention a script was recognized as.

type Notation int

const (
	NotationNone Notation = iota
	NotationFencedBlock
	NotationQuotedTriple
	NotationQuotedPair
	NotationTabTriple
	NotationTabPair
	NotationLooseHeading
)

func (n Notation) String() string {
	switch n {
	case NotationFencedBlock:
		return "fenced-block"
	case NotationQuotedTriple:
		return "quoted-tab-triple"
	case NotationQuotedPair:
		return "quoted-tab-pair"
	case NotationTabTriple:
		return "tab-triple"
	case NotationTabPair:
		return "tab-pair"
	case NotationLooseHeading:
		return "loose-heading"
	default:
		return "none"
	}
}
