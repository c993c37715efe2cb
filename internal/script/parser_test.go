/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseFencedBlockSingle(t *testing.T) {
	input := "**①ヒナ**（4字）\n```\nやあ\n```"
	got, n := Detect(input)
	if n != NotationFencedBlock {
		t.Fatalf("expected fenced-block notation, got %v", n)
	}
	want := Dialogue{Index: 1, Character: "ヒナ", Text: "やあ", CharCount: 4}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestParseFencedBlockRenumbersInDocumentOrder(t *testing.T) {
	input := `**⑤ヒナ**（90字）
` + "```" + `
私は、今日という日を生涯忘れることはないだろう
` + "```" + `

**②ホシノ**(51字)
` + "```" + `
え～、ではでは、指名されちゃったので...
` + "```" + `

**⑩12 ナレーション **（３０字）  ` + "```" + `そして、物語は続いていく...` + "```"

	got := Parse(input)
	if len(got) != 3 {
		t.Fatalf("expected 3 dialogues, got %d: %+v", len(got), got)
	}
	for i, d := range got {
		if d.Index != i+1 {
			t.Fatalf("dialogue %d has index %d", i, d.Index)
		}
	}
	if got[0].Character != "ヒナ" || got[0].CharCount != 90 {
		t.Fatalf("unexpected first dialogue: %+v", got[0])
	}
	if got[1].Character != "ホシノ" || got[1].CharCount != 51 || got[1].Text != "え～、ではでは、指名されちゃったので..." {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
	if got[2].Character != "ナレーション" || got[2].CharCount != 30 || got[2].Text != "そして、物語は続いていく..." {
		t.Fatalf("unexpected third dialogue: %+v", got[2])
	}
}

func TestParseFencedBlockKeepsAnnotationsInName(t *testing.T) {
	got := Parse("**①ヒナ（回想）**（2字）\n```\nね\n```")
	if len(got) != 1 || got[0].Character != "ヒナ（回想）" {
		t.Fatalf("fenced-block names are taken verbatim, got %+v", got)
	}
}

func TestParseQuotedTripleWithWrappedName(t *testing.T) {
	input := "\"ヒナ\n（回想）\"\tやあ、先生\t5\n\"ホシノ\"\tうへ〜\t3\n"
	got, n := Detect(input)
	if n != NotationQuotedTriple {
		t.Fatalf("expected quoted-tab-triple, got %v", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dialogues, got %+v", got)
	}
	if got[0] != (Dialogue{Index: 1, Character: "ヒナ", Text: "やあ、先生", CharCount: 5}) {
		t.Fatalf("unexpected first dialogue: %+v", got[0])
	}
	if got[1] != (Dialogue{Index: 2, Character: "ホシノ", Text: "うへ〜", CharCount: 3}) {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
}

func TestParseQuotedPairCountsRunes(t *testing.T) {
	input := "\"ヒナ\"\t やあ \n\"ホシノ\n(寝起き)\"\tうへ〜\n"
	got, n := Detect(input)
	if n != NotationQuotedPair {
		t.Fatalf("expected quoted-tab-pair, got %v", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dialogues, got %+v", got)
	}
	if got[0].Text != "やあ" || got[0].CharCount != 2 {
		t.Fatalf("unexpected first dialogue: %+v", got[0])
	}
	if got[1].Character != "ホシノ" || got[1].CharCount != 3 {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
}

func TestParseTabTripleLines(t *testing.T) {
	input := "ヒナ(回想)\tやあ\t2\r\nホシノ【電話】\tうへ〜\t12\r\n"
	got, n := Detect(input)
	if n != NotationTabTriple {
		t.Fatalf("expected tab-triple, got %v", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dialogues, got %+v", got)
	}
	if got[0].Character != "ヒナ" || got[0].CharCount != 2 {
		t.Fatalf("unexpected first dialogue: %+v", got[0])
	}
	if got[1].Character != "ホシノ" || got[1].Text != "うへ〜" || got[1].CharCount != 12 {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
}

func TestParseTabPairLines(t *testing.T) {
	input := "ヒナ\tやあ\n\nこれは説明文です\nホシノ\tおじさんだよ〜\n"
	got, n := Detect(input)
	if n != NotationTabPair {
		t.Fatalf("expected tab-pair, got %v", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dialogues, got %+v", got)
	}
	if got[1] != (Dialogue{Index: 2, Character: "ホシノ", Text: "おじさんだよ〜", CharCount: 7}) {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
}

func TestParseNotationsAreNotMerged(t *testing.T) {
	// triple lines win; the pair line is not folded in
	input := "ヒナ\tやあ\t2\nホシノ\tうへ〜"
	got, n := Detect(input)
	if n != NotationTabTriple || len(got) != 1 {
		t.Fatalf("expected a single tab-triple dialogue, got %v %+v", n, got)
	}

	// a fenced script with stray tab lines only yields the fenced dialogues
	input = "ヒナ\tやあ\t2\n**①ホシノ**（3字）\n```\nうへ〜\n```"
	got, n = Detect(input)
	if n != NotationFencedBlock || len(got) != 1 || got[0].Character != "ホシノ" {
		t.Fatalf("expected fenced-block priority, got %v %+v", n, got)
	}
}

func TestParseLooseHeadings(t *testing.T) {
	input := `**①ヒナ（回想）**（4字）
やあ、先生

**②ホシノ**（3字）

**③シロコ**（2字）
（小声で）
` + "```" + `
ん。
` + "```" + `
`
	got, n := Detect(input)
	if n != NotationLooseHeading {
		t.Fatalf("expected loose-heading, got %v", n)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 dialogues (empty heading dropped), got %+v", got)
	}
	if got[0] != (Dialogue{Index: 1, Character: "ヒナ", Text: "やあ、先生", CharCount: 4}) {
		t.Fatalf("unexpected first dialogue: %+v", got[0])
	}
	if got[1] != (Dialogue{Index: 2, Character: "シロコ", Text: "ん。", CharCount: 2}) {
		t.Fatalf("unexpected second dialogue: %+v", got[1])
	}
}

func TestParseEmptyAndUnrecognized(t *testing.T) {
	for _, in := range []string{"", "   \n\n", "just some prose without any structure", "**bold** text"} {
		got, n := Detect(in)
		if len(got) != 0 || n != NotationNone {
			t.Fatalf("input %q: expected no dialogues, got %v %+v", in, n, got)
		}
	}
}

func TestCleanCharacterName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ヒナ（回想）", "ヒナ"},
		{" ホシノ (寝起き) ", "ホシノ"},
		{"【電話】シロコ", "シロコ"},
		{"アロナ[AI]", "アロナ"},
		{"プラナ", "プラナ"},
		{"（ナレーション）", ""},
		{"先生(1)と(2)生徒", "先生と生徒"},
	}
	for _, c := range cases {
		if got := CleanCharacterName(c.in); got != c.want {
			t.Fatalf("CleanCharacterName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseFileStripsBOM(t *testing.T) {
	p := filepath.Join(t.TempDir(), "script.txt")
	if err := os.WriteFile(p, []byte("\ufeffヒナ\tやあ\t2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, n, err := ParseFile(p)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if n != NotationTabTriple || len(got) != 1 || got[0].Character != "ヒナ" {
		t.Fatalf("unexpected result: %v %+v", n, got)
	}
	if _, _, err := ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
