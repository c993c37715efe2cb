/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package timeline places rendered dialogue clips on a multi-layer timeline.
//
// Clips play one after another in script order with a fixed gap between
// them; every character gets its own layer, numbered by first appearance.
package timeline

import "sort"

const (
	DefaultFrameRate  = 60
	DefaultGapSeconds = 0.3
	// TrailingMarginFrames is appended after the last clip so consumers do
	// not cut it off.
	TrailingMarginFrames = 60
)

// Entry is a dialogue line with the measured length of its audio.
type Entry struct {
	Index           int
	Character       string
	Text            string
	DurationSeconds float64
	// Source names the rendered clip; Layout carries it through untouched.
	Source string
}

// Placement is where an entry lands on the timeline.
type Placement struct {
	Entry
	Layer        int
	FrameStart   int
	LengthFrames int
}

// LayerAssignment binds a character to its layer.
type LayerAssignment struct {
	Character string
	Layer     int
}

// Plan is the full layout of one batch.
type Plan struct {
	Placements        []Placement
	TotalLengthFrames int
	// Layers is in first-appearance order.
	Layers    []LayerAssignment
	FrameRate int
	GapFrames int
}

// Options tunes Layout. Zero values fall back to the defaults.
type Options struct {
	FrameRate  int
	GapSeconds float64
}

func (o Options) normalized() Options {
	if o.FrameRate <= 0 {
		o.FrameRate = DefaultFrameRate
	}
	if o.GapSeconds < 0 {
		o.GapSeconds = 0
	}
	return o
}

// toFrames converts seconds to whole frames, truncating toward zero.
func toFrames(seconds float64, fps int) int {
	f := int(seconds * float64(fps))
	if f < 0 {
		return 0
	}
	return f
}

// Layout assigns layers and frame positions in ascending index order.
// The input slice is not modified.
func Layout(entries []Entry, opts Options) Plan {
	opts = opts.normalized()
	plan := Plan{FrameRate: opts.FrameRate, GapFrames: toFrames(opts.GapSeconds, opts.FrameRate)}
	if len(entries) == 0 {
		return plan
	}

	ordered := append([]Entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	layers := make(map[string]int)
	nextLayer := 0
	cursor := 0
	plan.Placements = make([]Placement, 0, len(ordered))
	for _, e := range ordered {
		layer, seen := layers[e.Character]
		if !seen {
			layer = nextLayer
			layers[e.Character] = layer
			plan.Layers = append(plan.Layers, LayerAssignment{Character: e.Character, Layer: layer})
			nextLayer++
		}
		length := toFrames(e.DurationSeconds, opts.FrameRate)
		plan.Placements = append(plan.Placements, Placement{
			Entry:        e,
			Layer:        layer,
			FrameStart:   cursor,
			LengthFrames: length,
		})
		cursor += length + plan.GapFrames
	}

	last := plan.Placements[len(plan.Placements)-1]
	plan.TotalLengthFrames = last.FrameStart + last.LengthFrames + TrailingMarginFrames
	return plan
}

// LayerOf returns the layer assigned to a character.
func (p Plan) LayerOf(character string) (int, bool) {
	for _, a := range p.Layers {
		if a.Character == character {
			return a.Layer, true
		}
	}
	return 0, false
}

// Seconds is the playing time from the first frame to the end of the last
// clip, without the trailing margin.
func (p Plan) Seconds() float64 {
	if len(p.Placements) == 0 || p.FrameRate <= 0 {
		return 0
	}
	last := p.Placements[len(p.Placements)-1]
	return float64(last.FrameStart+last.LengthFrames) / float64(p.FrameRate)
}
