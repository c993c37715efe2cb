/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ymmp

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"serifu/internal/timeline"
)

const (
	voiceItemType      = "YukkuriMovieMaker.Project.Items.VoiceItem, YukkuriMovieMaker"
	voiceParameterType = "YukkuriMovieMaker.Voice.AquesTalk1VoiceParameter, YukkuriMovieMaker"

	DefaultVolume   = 50.0
	DefaultFontSize = 45.0
)

type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
}

type BezierPoint struct {
	Point         Point `json:"Point"`
	ControlPoint1 Point `json:"ControlPoint1"`
	ControlPoint2 Point `json:"ControlPoint2"`
}

type Bezier struct {
	Points      []BezierPoint `json:"Points"`
	IsQuadratic bool          `json:"IsQuadratic"`
}

type AnimValue struct {
	Value float64 `json:"Value"`
}

// AnimParam is a YMM4 animatable value held constant.
type AnimParam struct {
	Values        []AnimValue `json:"Values"`
	Span          float64     `json:"Span"`
	AnimationType string      `json:"AnimationType"`
	Bezier        Bezier      `json:"Bezier"`
}

// Constant returns a non-animated parameter with a linear default curve.
func Constant(v float64) AnimParam {
	ctl1, ctl2 := Point{X: -0.3, Y: -0.3}, Point{X: 0.3, Y: 0.3}
	return AnimParam{
		Values:        []AnimValue{{Value: v}},
		AnimationType: "なし",
		Bezier: Bezier{Points: []BezierPoint{
			{Point: Point{X: 0, Y: 0}, ControlPoint1: ctl1, ControlPoint2: ctl2},
			{Point: Point{X: 1, Y: 1}, ControlPoint1: ctl1, ControlPoint2: ctl2},
		}},
	}
}

type VoiceParameter struct {
	Type          string `json:"$type"`
	Speed         int    `json:"Speed"`
	EngineVersion string `json:"EngineVersion"`
}

type KeyFrames struct {
	Frames []int `json:"Frames"`
	Count  int   `json:"Count"`
}

// VoiceItem is a timeline item that plays a pre-rendered audio file and shows
// its line as a subtitle. Field order follows what YMM4 itself writes.
type VoiceItem struct {
	Type                      string         `json:"$type"`
	IsWaveformEnabled         bool           `json:"IsWaveformEnabled"`
	CharacterName             string         `json:"CharacterName"`
	Serif                     string         `json:"Serif"`
	Decorations               []any          `json:"Decorations"`
	Hatsuon                   string         `json:"Hatsuon"`
	Pronounce                 any            `json:"Pronounce"`
	LipSyncFrames             []any          `json:"LipSyncFrames"`
	VoiceCache                any            `json:"VoiceCache"`
	VoiceLength               string         `json:"VoiceLength"`
	Volume                    AnimParam      `json:"Volume"`
	Pan                       AnimParam      `json:"Pan"`
	PlaybackRate              float64        `json:"PlaybackRate"`
	VoiceParameter            VoiceParameter `json:"VoiceParameter"`
	ContentOffset             string         `json:"ContentOffset"`
	VoiceFadeIn               float64        `json:"VoiceFadeIn"`
	VoiceFadeOut              float64        `json:"VoiceFadeOut"`
	EchoIsEnabled             bool           `json:"EchoIsEnabled"`
	EchoInterval              float64        `json:"EchoInterval"`
	EchoAttenuation           float64        `json:"EchoAttenuation"`
	AudioEffects              []any          `json:"AudioEffects"`
	JimakuVisibility          string         `json:"JimakuVisibility"`
	X                         AnimParam      `json:"X"`
	Y                         AnimParam      `json:"Y"`
	Z                         AnimParam      `json:"Z"`
	Opacity                   AnimParam      `json:"Opacity"`
	Zoom                      AnimParam      `json:"Zoom"`
	Rotation                  AnimParam      `json:"Rotation"`
	JimakuFadeIn              float64        `json:"JimakuFadeIn"`
	JimakuFadeOut             float64        `json:"JimakuFadeOut"`
	Blend                     string         `json:"Blend"`
	IsInverted                bool           `json:"IsInverted"`
	IsClippingWithObjectAbove bool           `json:"IsClippingWithObjectAbove"`
	IsAlwaysOnTop             bool           `json:"IsAlwaysOnTop"`
	IsZOrderEnabled           bool           `json:"IsZOrderEnabled"`
	Font                      string         `json:"Font"`
	FontSize                  AnimParam      `json:"FontSize"`
	LineHeight2               AnimParam      `json:"LineHeight2"`
	LetterSpacing2            AnimParam      `json:"LetterSpacing2"`
	WordWrap                  string         `json:"WordWrap"`
	MaxWidth                  AnimParam      `json:"MaxWidth"`
	BasePoint                 string         `json:"BasePoint"`
	FontColor                 string         `json:"FontColor"`
	Style                     string         `json:"Style"`
	StyleColor                string         `json:"StyleColor"`
	Bold                      bool           `json:"Bold"`
	Italic                    bool           `json:"Italic"`
	IsTrimEndSpace            bool           `json:"IsTrimEndSpace"`
	IsDevidedPerCharacter     bool           `json:"IsDevidedPerCharacter"`
	DisplayInterval           float64        `json:"DisplayInterval"`
	DisplayDirection          string         `json:"DisplayDirection"`
	HideInterval              float64        `json:"HideInterval"`
	HideDirection             string         `json:"HideDirection"`
	JimakuVideoEffects        []any          `json:"JimakuVideoEffects"`
	TachieFaceParameter       any            `json:"TachieFaceParameter"`
	TachieFaceEffects         []any          `json:"TachieFaceEffects"`
	Group                     int            `json:"Group"`
	Frame                     int            `json:"Frame"`
	Layer                     int            `json:"Layer"`
	KeyFrames                 KeyFrames      `json:"KeyFrames"`
	Length                    int            `json:"Length"`
	Remark                    string         `json:"Remark"`
	IsLocked                  bool           `json:"IsLocked"`
	IsHidden                  bool           `json:"IsHidden"`
}

// ItemOptions configures BuildItems.
type ItemOptions struct {
	// VoiceDir is the folder, as seen from the machine running YMM4, that
	// holds the clips. It is joined with a backslash.
	VoiceDir string
	Volume   float64 // DefaultVolume when zero
	FontSize float64 // DefaultFontSize when zero
}

// NewVoiceItem fills a VoiceItem with YMM4's defaults for a clip placement.
func NewVoiceItem(p timeline.Placement, style CharacterStyle, opts ItemOptions) VoiceItem {
	volume := opts.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	fontSize := opts.FontSize
	if fontSize == 0 {
		fontSize = DefaultFontSize
	}
	return VoiceItem{
		Type:               voiceItemType,
		CharacterName:      p.Character,
		Serif:              p.Text,
		Decorations:        []any{},
		Hatsuon:            WindowsPath(opts.VoiceDir, p.Source),
		LipSyncFrames:      []any{},
		VoiceLength:        FormatTimeSpan(p.DurationSeconds),
		Volume:             Constant(volume),
		Pan:                Constant(0),
		PlaybackRate:       100,
		VoiceParameter:     VoiceParameter{Type: voiceParameterType, Speed: 100, EngineVersion: "V1_7"},
		ContentOffset:      "00:00:00",
		EchoInterval:       0.1,
		EchoAttenuation:    40,
		AudioEffects:       []any{},
		JimakuVisibility:   "UseCharacterSetting",
		X:                  Constant(0),
		Y:                  Constant(style.Y),
		Z:                  Constant(0),
		Opacity:            Constant(100),
		Zoom:               Constant(100),
		Rotation:           Constant(0),
		Blend:              "Normal",
		Font:               style.Font,
		FontSize:           Constant(fontSize),
		LineHeight2:        Constant(100),
		LetterSpacing2:     Constant(0),
		WordWrap:           "NoWrap",
		MaxWidth:           Constant(1920),
		BasePoint:          "CenterBottom",
		FontColor:          style.FontColor,
		Style:              "Border",
		StyleColor:         style.StyleColor,
		DisplayDirection:   "FromFirst",
		HideDirection:      "FromFirst",
		JimakuVideoEffects: []any{},
		TachieFaceEffects:  []any{},
		Frame:              p.FrameStart,
		Layer:              p.Layer,
		KeyFrames:          KeyFrames{Frames: []int{}},
		Length:             p.LengthFrames,
	}
}

// BuildItems turns every placement of plan into a VoiceItem. Characters the
// template does not define get DefaultStyle and are reported, sorted, in missing.
func BuildItems(plan timeline.Plan, styles map[string]CharacterStyle, opts ItemOptions) (items []VoiceItem, missing []string) {
	items = make([]VoiceItem, 0, len(plan.Placements))
	seen := make(map[string]bool)
	for _, p := range plan.Placements {
		style, ok := styles[p.Character]
		if !ok {
			style = DefaultStyle()
			if !seen[p.Character] {
				seen[p.Character] = true
				missing = append(missing, p.Character)
			}
		}
		items = append(items, NewVoiceItem(p, style, opts))
	}
	sort.Strings(missing)
	return items, missing
}

// WindowsPath joins dir and file with a single backslash.
func WindowsPath(dir, file string) string {
	dir = strings.TrimRight(dir, `\/`)
	if dir == "" {
		return file
	}
	return dir + `\` + file
}

// FormatTimeSpan renders seconds as a .NET TimeSpan, HH:MM:SS.fffffff.
// Negative input renders as zero.
func FormatTimeSpan(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	h := int(seconds / 3600)
	m := int(math.Mod(seconds, 3600) / 60)
	s := math.Mod(seconds, 60)
	return fmt.Sprintf("%02d:%02d:%010.7f", h, m, s)
}
