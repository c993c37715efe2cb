/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomicCreatesDirsAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "out", "1_ヒナ_やあ.mp3")
	if err := WriteFileAtomic(p, []byte("one")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(p, []byte("two")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "two" {
		t.Fatalf("content = %q", b)
	}
	ents, _ := os.ReadDir(filepath.Dir(p))
	for _, e := range ents {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
	if err := WriteFileAtomic("  ", nil); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestWriteWithBackup(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "drama.ymmp")

	bpath, err := WriteWithBackup(p, []byte("v1"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	if bpath != "" {
		t.Fatalf("no backup expected for a new file, got %s", bpath)
	}

	bpath, err = WriteWithBackup(p, []byte("v2"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if filepath.Dir(bpath) != filepath.Join(dir, BackupsDirName) {
		t.Fatalf("backup in wrong dir: %s", bpath)
	}
	if !strings.HasPrefix(filepath.Base(bpath), "drama.ymmp.") || !strings.HasSuffix(bpath, ".bak") {
		t.Fatalf("backup name: %s", bpath)
	}
	old, err := os.ReadFile(bpath)
	if err != nil || string(old) != "v1" {
		t.Fatalf("backup content = %q, %v", old, err)
	}
	cur, _ := os.ReadFile(p)
	if string(cur) != "v2" {
		t.Fatalf("current content = %q", cur)
	}
}
