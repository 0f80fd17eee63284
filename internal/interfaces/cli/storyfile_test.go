package cli

import (
	"os"
	"path/filepath"
	"testing"

	storyctx "z-novel-chapter-gen/internal/application/story/context"
	apperrors "z-novel-chapter-gen/pkg/errors"
)

const anaBo = `
characters:
  - name: Ana
    description: a knight
  - name: Bo
    description: a thief
plot: Ana meets Bo at the border.
style_guide: Short sentences.
writing_style: Third person, past tense.
instructions: Keep it light.
output_path: book
`

func TestLoadStoryFileAndApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "story.yaml")
	if err := os.WriteFile(path, []byte(anaBo), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadStoryFile(path)
	if err != nil {
		t.Fatalf("LoadStoryFile: %v", err)
	}
	store := storyctx.NewStore("cli", dir)
	if err := f.Apply(store, ""); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	snap := store.Snapshot()
	if len(snap.Characters) != 2 || snap.Characters[0].Name != "Ana" || snap.Characters[1].Name != "Bo" {
		t.Fatalf("characters = %+v", snap.Characters)
	}
	if snap.Plot != "Ana meets Bo at the border." || snap.WritingStyle != "Third person, past tense." {
		t.Fatalf("fields = %+v", snap)
	}
	if snap.OutputPath != filepath.Join(dir, "book") {
		t.Fatalf("output path = %q", snap.OutputPath)
	}
}

func TestApplyOutputOverride(t *testing.T) {
	dir := t.TempDir()
	f, err := ParseStoryFile([]byte(anaBo))
	if err != nil {
		t.Fatal(err)
	}
	store := storyctx.NewStore("cli", dir)
	if err := f.Apply(store, "other"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got := store.OutputPath(); got != filepath.Join(dir, "other") {
		t.Fatalf("output path = %q", got)
	}
}

func TestParseStoryFileErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":         "",
		"unknown field": "plot: x\nmood: dark\n",
		"bad yaml":      "characters: [",
	} {
		if _, err := ParseStoryFile([]byte(raw)); !apperrors.IsValidation(err) {
			t.Errorf("%s: err = %v, want validation error", name, err)
		}
	}
}

func TestApplyRejectsDuplicateCharacters(t *testing.T) {
	f, err := ParseStoryFile([]byte("characters:\n  - name: Ana\n  - name: Ana\noutput_path: out\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Apply(storyctx.NewStore("cli", t.TempDir()), ""); !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestApplyRequiresOutputPath(t *testing.T) {
	f, err := ParseStoryFile([]byte("plot: x\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Apply(storyctx.NewStore("cli", t.TempDir()), ""); !apperrors.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}
