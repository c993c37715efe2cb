/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ymmp reads a YMM4 project template, places voice items on its
// first timeline and writes the result back.
//
// The document is kept as raw JSON. Only the paths this package owns are
// rewritten, everything else in the template survives untouched.
package ymmp

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/xeipuuv/gojsonschema"

	"serifu/internal/storage"
)

// Ext is the project file extension.
const Ext = ".ymmp"

const bom = "\ufeff"

// ErrInvalidTemplate wraps every template that is not JSON or fails the schema.
var ErrInvalidTemplate = errors.New("invalid ymmp template")

//go:embed template.schema.json
var templateSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(templateSchema))
	})
	return schema, schemaErr
}

// Document is a YMM4 project held as raw JSON.
type Document struct {
	raw []byte
}

// Parse validates data as a template. A leading UTF-8 BOM is ignored.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte(bom))
	if !json.Valid(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalidTemplate)
	}
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile template schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidTemplate, strings.Join(msgs, "; "))
	}
	return &Document{raw: append([]byte(nil), data...)}, nil
}

// LoadTemplate reads and validates a template file.
func LoadTemplate(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Bytes returns the compact document without BOM.
func (d *Document) Bytes() []byte { return d.raw }

// Get exposes a gjson path of the document, mostly for inspection.
func (d *Document) Get(path string) gjson.Result { return gjson.GetBytes(d.raw, path) }

// CharacterStyle is the subset of a template character used for voice items.
type CharacterStyle struct {
	Name       string
	FontColor  string
	StyleColor string
	Font       string
	Color      string
	Y          float64
}

// DefaultStyle applies to characters the template does not define.
func DefaultStyle() CharacterStyle {
	return CharacterStyle{
		FontColor:  "#FFFFFFFF",
		StyleColor: "#FF8B0000",
		Font:       "メイリオ",
		Color:      "#FFFFFFFF",
		Y:          530,
	}
}

// CharacterStyles reads the template's Characters by name. Missing fields
// fall back to DefaultStyle.
func (d *Document) CharacterStyles() map[string]CharacterStyle {
	out := make(map[string]CharacterStyle)
	d.Get("Characters").ForEach(func(_, c gjson.Result) bool {
		name := c.Get("Name").String()
		if name == "" {
			return true
		}
		st := DefaultStyle()
		st.Name = name
		if v := c.Get("FontColor"); v.Exists() {
			st.FontColor = v.String()
		}
		if v := c.Get("StyleColor"); v.Exists() {
			st.StyleColor = v.String()
		}
		if v := c.Get("Font"); v.Exists() {
			st.Font = v.String()
		}
		if v := c.Get("Color"); v.Exists() {
			st.Color = v.String()
		}
		if v := c.Get("Y.Values.0.Value"); v.Exists() {
			st.Y = v.Float()
		}
		out[name] = st
		return true
	})
	return out
}

// Place replaces the items of the first timeline and sets its length.
func (d *Document) Place(items []VoiceItem, totalLength int) error {
	if items == nil {
		items = []VoiceItem{}
	}
	enc, err := marshalNoEscape(items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	raw, err := sjson.SetRawBytes(d.raw, "Timelines.0.Items", enc)
	if err != nil {
		return fmt.Errorf("set items: %w", err)
	}
	raw, err = sjson.SetBytes(raw, "Timelines.0.Length", totalLength)
	if err != nil {
		return fmt.Errorf("set length: %w", err)
	}
	d.raw = raw
	return nil
}

// Marshal renders the document the way YMM4 writes it: UTF-8 with BOM,
// two-space indentation, non-ASCII text unescaped.
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(bom)
	if err := json.Indent(&buf, d.raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes the document atomically. An existing file at path is first
// copied into a backups folder beside it; the backup path is returned.
func Save(path string, d *Document) (string, error) {
	data, err := d.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return storage.WriteWithBackup(path, data)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
