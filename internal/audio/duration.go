/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package audio measures rendered clips.
package audio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tcolgate/mp3"
)

// ErrNoFrames is returned when a stream holds no decodable MP3 frame.
var ErrNoFrames = errors.New("no mp3 frames found")

// Measure sums the duration of every MP3 frame in r. ID3 tags and other
// junk between frames are skipped by the decoder.
func Measure(r io.Reader) (time.Duration, error) {
	dec := mp3.NewDecoder(r)
	var (
		f       mp3.Frame
		skipped int
		total   time.Duration
		frames  int
	)
	for {
		if err := dec.Decode(&f, &skipped); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return 0, fmt.Errorf("decode frame %d: %w", frames, err)
		}
		total += f.Duration()
		frames++
	}
	if frames == 0 {
		return 0, ErrNoFrames
	}
	return total, nil
}

// Duration returns the playing time of an MP3 file in seconds.
func Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	d, err := Measure(bufio.NewReader(f))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return d.Seconds(), nil
}
