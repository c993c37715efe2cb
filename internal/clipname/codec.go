/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package clipname maps dialogue lines to audio clip file names and back.
//
// A clip is named "{index}_{character}_{text}.mp3". The text part is sanitized
// for the filesystem and truncated, so decoding does not always give back the
// original text; index and character survive the round trip.
package clipname

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"serifu/internal/script"
)

const (
	// Ext is the extension of every rendered clip.
	Ext = ".mp3"
	// MaxTextRunes bounds the text part of a file name after substitution.
	MaxTextRunes = 200
)

// ErrMalformedFilename is returned when a name does not start with a numeric index.
var ErrMalformedFilename = errors.New("malformed clip filename")

// Clip is the information recovered from a clip file name.
type Clip struct {
	Index     int
	Character string
	Text      string
	// File is the base name the clip was decoded from, if any.
	File string
}

// illegal lists characters Windows and POSIX filesystems reject in names.
const illegal = `\/:*?"<>|`

func keep(r rune) bool {
	return !strings.ContainsRune(illegal, r) && !unicode.IsControl(r)
}

func strip(s string) string {
	return strings.Map(func(r rune) rune {
		if keep(r) {
			return r
		}
		return -1
	}, s)
}

// SanitizeText removes illegal and control characters, swaps spaces for
// underscores and truncates to MaxTextRunes without splitting a rune.
func SanitizeText(text string) string {
	s := strings.ReplaceAll(strip(text), " ", "_")
	n := 0
	for i := range s {
		if n == MaxTextRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// Encode returns the clip file name (with extension) for a dialogue.
func Encode(d script.Dialogue) string {
	return fmt.Sprintf("%d_%s_%s%s", d.Index, strip(d.Character), SanitizeText(d.Text), Ext)
}

// Decode parses a clip name without extension. Only the first two underscores
// separate fields; the rest belongs to the text.
func Decode(base string) (Clip, error) {
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 {
		return Clip{}, fmt.Errorf("%w: %q has no character segment", ErrMalformedFilename, base)
	}
	idx, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %q has non-numeric index", ErrMalformedFilename, base)
	}
	c := Clip{Index: idx, Character: parts[1]}
	if len(parts) == 3 {
		c.Text = parts[2]
	}
	return c, nil
}

// DecodeFile decodes a file name, dropping its directory and extension.
func DecodeFile(name string) (Clip, error) {
	base := filepath.Base(name)
	c, err := Decode(strings.TrimSuffix(base, filepath.Ext(base)))
	if err != nil {
		return Clip{}, err
	}
	c.File = base
	return c, nil
}

// Scan lists the clips in dir ordered by index. Names that cannot be decoded
// are reported in skipped and left out.
func Scan(dir string) (clips []Clip, skipped []error, err error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read clip dir: %w", err)
	}
	for _, e := range ents {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), Ext) {
			continue
		}
		c, derr := DecodeFile(e.Name())
		if derr != nil {
			skipped = append(skipped, derr)
			continue
		}
		clips = append(clips, c)
	}
	sort.SliceStable(clips, func(i, j int) bool { return clips[i].Index < clips[j].Index })
	return clips, skipped, nil
}
