/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcolgate/mp3"
	"github.com/zalando/go-keyring"

	"serifu/internal/config"
	"serifu/internal/storage"
	"serifu/internal/synth"
	"serifu/internal/ymmp"
)

// workspace is an isolated working directory with its own config file.
type workspace struct {
	dir    string
	outDir string
}

func newWorkspace(t *testing.T, extraConfig string) workspace {
	t.Helper()
	dir := t.TempDir()
	prevDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prevDir) })
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, env := range []string{config.EnvOutputDir, config.EnvModel, config.EnvTemplate, config.EnvVoiceBaseDir, config.EnvBaseURL} {
		t.Setenv(env, "")
	}
	ws := workspace{dir: dir, outDir: filepath.Join(dir, "voices")}
	cfg := fmt.Sprintf("output_directory: %q\nrequest_delay_ms: 0\ncharacter_voices:\n  ヒナ: v-hina\n%s", ws.outDir, extraConfig)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfg), 0o644))
	return ws
}

func (ws workspace) write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(ws.dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

const tabScript = "ヒナ\tやあ\nホシノ\tうへ〜\nヒナ\t先生\n"

func TestParseCommand(t *testing.T) {
	ws := newWorkspace(t, "")
	p := ws.write(t, "drama.txt", tabScript)

	out, _, err := run(t, "", "parse", p)
	require.NoError(t, err)
	assert.Contains(t, out, "Notation: tab-pair")
	assert.Contains(t, out, "Lines: 3")
	assert.Contains(t, out, "1. ヒナ: やあ (2 chars)  [voice ok]")
	assert.Contains(t, out, "2. ホシノ: うへ〜 (3 chars)  [no voice]")
}

func TestParseCommandFromStdin(t *testing.T) {
	newWorkspace(t, "")
	out, _, err := run(t, tabScript+"\n\nignored\ttrailing\n", "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "Lines: 3")
	assert.NotContains(t, out, "ignored")
}

func TestParseCommandNoDialogue(t *testing.T) {
	ws := newWorkspace(t, "")
	p := ws.write(t, "notes.txt", "just some prose\n")
	_, _, err := run(t, "", "parse", p)
	assert.ErrorIs(t, err, errNoDialogue)

	_, _, err = run(t, "\n\n", "parse")
	assert.EqualError(t, err, "empty input")
}

func ttsServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get("xi-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(bytes.Repeat(mp3.SilentBytes, 5))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateCommand(t *testing.T) {
	var calls int32
	srv := ttsServer(t, &calls)
	ws := newWorkspace(t, fmt.Sprintf("elevenlabs:\n  base_url: %q\n", srv.URL))
	t.Setenv(config.EnvAPIKey, "test-key")
	p := ws.write(t, "drama.txt", tabScript)

	out, _, err := run(t, "", "generate", p, "-y")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.Contains(t, out, "success: 2")
	assert.Contains(t, out, "skipped: 1")
	assert.Contains(t, out, "Characters without a voice:\n  - ホシノ")

	_, err = os.Stat(filepath.Join(ws.outDir, "1_ヒナ_やあ.mp3"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(ws.outDir, "3_ヒナ_先生.mp3"))
	require.NoError(t, err)

	hist, err := storage.OpenHistory(ws.outDir)
	require.NoError(t, err)
	defer hist.Close()
	runInfo, results, err := hist.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, p, runInfo.Script)
	assert.Equal(t, "tab-pair", runInfo.Notation)
	require.Len(t, results, 3)
	assert.Equal(t, synth.StatusSkipped, results[1].Status)

	// the ledger is readable through the history command
	out, _, err = run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "3 lines: 2 ok, 1 skipped, 0 errors")

	// and the clips go straight into a project
	tpl := ws.write(t, "template.ymmp", `{"Timelines":[{"Items":[]}],"Characters":[{"Name":"ヒナ"}]}`)
	out, _, err = run(t, "", "ymmp", "-t", tpl, "-v", `D:\voices`, "-s", "drama")
	require.NoError(t, err)
	assert.Contains(t, out, "Written: drama.ymmp")
	assert.Contains(t, out, "Layer 0: ヒナ")
	doc, err := ymmp.LoadTemplate(filepath.Join(ws.dir, "drama.ymmp"))
	require.NoError(t, err)
	assert.Equal(t, `D:\voices\drama\3_ヒナ_先生.mp3`, doc.Get("Timelines.0.Items.1.Hatsuon").String())
}

func TestGenerateDeclined(t *testing.T) {
	var calls int32
	srv := ttsServer(t, &calls)
	ws := newWorkspace(t, fmt.Sprintf("elevenlabs:\n  base_url: %q\n", srv.URL))
	t.Setenv(config.EnvAPIKey, "test-key")
	p := ws.write(t, "drama.txt", tabScript)

	out, _, err := run(t, "n\n", "generate", p)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled.")
	assert.EqualValues(t, 0, atomic.LoadInt32(&calls))
}

func TestGenerateWithoutAPIKey(t *testing.T) {
	keyring.MockInit()
	ws := newWorkspace(t, "")
	t.Setenv(config.EnvAPIKey, "")
	p := ws.write(t, "drama.txt", tabScript)

	_, _, err := run(t, "", "generate", p, "-y")
	assert.ErrorIs(t, err, config.ErrNoAPIKey)
}

func TestYMMPCommandRequiresTemplateAndVoiceDir(t *testing.T) {
	ws := newWorkspace(t, "")
	_, _, err := run(t, "", "ymmp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template")

	tpl := ws.write(t, "t.ymmp", `{"Timelines":[{}]}`)
	_, _, err = run(t, "", "ymmp", "-t", tpl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voice folder")
}

func TestYMMPCommandWarnsAndSkips(t *testing.T) {
	ws := newWorkspace(t, "")
	audioDir := filepath.Join(ws.dir, "clips")
	require.NoError(t, os.MkdirAll(audioDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "2_ホシノ_うへ.mp3"), bytes.Repeat(mp3.SilentBytes, 20), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "1_ヒナ_やあ.mp3"), bytes.Repeat(mp3.SilentBytes, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "cover.mp3"), bytes.Repeat(mp3.SilentBytes, 1), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(audioDir, "3_ヒナ_empty.mp3"), nil, 0o644))
	tpl := ws.write(t, "t.ymmp", `{"Timelines":[{"Items":[]}]}`)

	out, errOut, err := run(t, "", "ymmp", "-a", audioDir, "-t", tpl, "-v", `D:\v`, "-o", "out.ymmp", "-g", "0")
	require.NoError(t, err)
	assert.Contains(t, errOut, "cover")
	assert.Contains(t, errOut, "3_ヒナ_empty.mp3")
	assert.Contains(t, errOut, "  - ヒナ\n  - ホシノ")
	assert.Contains(t, out, "lines:      2")

	doc, err := ymmp.LoadTemplate(filepath.Join(ws.dir, "out.ymmp"))
	require.NoError(t, err)
	assert.Equal(t, "ヒナ", doc.Get("Timelines.0.Items.0.CharacterName").String())
	assert.Equal(t, int64(0), doc.Get("Timelines.0.Items.0.Frame").Int())
	assert.Equal(t, doc.Get("Timelines.0.Items.0.Length").Int(), doc.Get("Timelines.0.Items.1.Frame").Int())
}

func TestHistoryEmpty(t *testing.T) {
	ws := newWorkspace(t, "")
	out, _, err := run(t, "", "history")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded in "+ws.outDir)
}

func TestVersionCommand(t *testing.T) {
	newWorkspace(t, "")
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "serifu "))
}

func TestAuthSetKey(t *testing.T) {
	keyring.MockInit()
	newWorkspace(t, "")
	t.Setenv(config.EnvAPIKey, "")

	_, _, err := run(t, "sk-123\n", "auth", "set-key")
	require.NoError(t, err)
	key, err := config.APIKey()
	require.NoError(t, err)
	assert.Equal(t, "sk-123", key)

	_, _, err = run(t, "\n", "auth", "set-key")
	assert.Error(t, err)

	_, _, err = run(t, "", "auth", "clear-key")
	require.NoError(t, err)
	_, err = config.APIKey()
	assert.ErrorIs(t, err, config.ErrNoAPIKey)
}

func TestReadPasted(t *testing.T) {
	got, err := readPasted(bufio.NewReader(strings.NewReader("a\n\nb\n\n\nc\n")))
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb\n\n", got)

	got, err = readPasted(bufio.NewReader(strings.NewReader("a\r\nb")))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", got)
}

func TestVoicesCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v-hina","name":"Hina"},{"voice_id":"v-x","name":"Other"}]}`))
	}))
	defer srv.Close()
	newWorkspace(t, fmt.Sprintf("elevenlabs:\n  base_url: %q\n", srv.URL))
	t.Setenv(config.EnvAPIKey, "test-key")

	out, _, err := run(t, "", "voices")
	require.NoError(t, err)
	assert.Contains(t, out, "2 voices")
	assert.Contains(t, out, "Hina: v-hina  (used by [ヒナ])")
	assert.Contains(t, out, "Other: v-x\n")
}
