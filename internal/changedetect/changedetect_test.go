package changedetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffFilesAddedDeletedModified(t *testing.T) {
	old := map[string]FileSnapshot{
		"a.go": {Path: "a.go", ContentHash: "h1", Content: "package a\nfunc A() {}\n"},
		"b.go": {Path: "b.go", ContentHash: "h2", Content: "package b\nfunc B() {}\n"},
	}
	new := map[string]FileSnapshot{
		"a.go": {Path: "a.go", ContentHash: "h1-changed", Content: "package a\nfunc A() { return }\n"},
		"c.go": {Path: "c.go", ContentHash: "h3", Content: "package c\nfunc C() { totally different body here }\n"},
	}

	result := DiffFiles(old, new)

	byPath := make(map[string]FileChange)
	for _, c := range result.Changes {
		byPath[c.Path] = c
	}

	assert.Equal(t, FileModified, byPath["a.go"].Kind)
	assert.Equal(t, FileAdded, byPath["c.go"].Kind)

	found := false
	for _, c := range result.Changes {
		if c.Kind == FileDeleted && c.Path == "b.go" {
			found = true
		}
	}
	assert.True(t, found, "b.go should be reported as deleted (too dissimilar to c.go to be a rename)")
}

func TestDiffFilesDetectsRename(t *testing.T) {
	identicalContent := `package sample

func DoWork(x int) int {
	result := x * 2
	for i := 0; i < 10; i++ {
		result += i
	}
	return result
}
`
	old := map[string]FileSnapshot{
		"old_name.go": {Path: "old_name.go", ContentHash: "samehash", Content: identicalContent},
	}
	new := map[string]FileSnapshot{
		"new_name.go": {Path: "new_name.go", ContentHash: "samehash", Content: identicalContent},
	}

	result := DiffFiles(old, new)
	require := assert.New(t)
	require.Len(result.Changes, 1)
	require.Equal(FileRenamed, result.Changes[0].Kind)
	require.Equal("new_name.go", result.Changes[0].Path)
	require.Equal("old_name.go", result.Changes[0].OldPath)
}

func TestDiffFilesDissimilarFilesNotRenamed(t *testing.T) {
	old := map[string]FileSnapshot{
		"old.go": {Path: "old.go", ContentHash: "h1", Content: "package p\nfunc Alpha() {}\n"},
	}
	new := map[string]FileSnapshot{
		"new.go": {Path: "new.go", ContentHash: "h2", Content: "package q\nimport \"net/http\"\ntype Server struct{ addr string }\nfunc (s *Server) Listen() error { return nil }\n"},
	}

	result := DiffFiles(old, new)
	kinds := make(map[string]FileChangeKind)
	for _, c := range result.Changes {
		kinds[c.Path] = c.Kind
	}
	assert.Equal(t, FileDeleted, kinds["old.go"])
	assert.Equal(t, FileAdded, kinds["new.go"])
}

func TestDiffUnitsClassifiesEachKind(t *testing.T) {
	old := []UnitSnapshot{
		{QualifiedName: "Foo", ContentHash: "h1"},
		{QualifiedName: "Bar", ContentHash: "h2"},
		{QualifiedName: "Baz", ContentHash: "h3"},
	}
	new := []UnitSnapshot{
		{QualifiedName: "Foo", ContentHash: "h1"},        // unchanged
		{QualifiedName: "Bar", ContentHash: "h2-changed"}, // modified
		{QualifiedName: "Qux", ContentHash: "h4"},         // added
		// Baz deleted
	}

	result := DiffUnits(old, new)
	byName := make(map[string]UnitChangeKind)
	for _, c := range result.Changes {
		byName[c.QualifiedName] = c.Kind
	}

	assert.Equal(t, UnitUnchanged, byName["Foo"])
	assert.Equal(t, UnitModified, byName["Bar"])
	assert.Equal(t, UnitAdded, byName["Qux"])
	assert.Equal(t, UnitDeleted, byName["Baz"])
}

func TestDiffUnitsRecommendsFullReindexAboveThreshold(t *testing.T) {
	old := []UnitSnapshot{
		{QualifiedName: "A", ContentHash: "1"},
		{QualifiedName: "B", ContentHash: "2"},
		{QualifiedName: "C", ContentHash: "3"},
	}
	new := []UnitSnapshot{
		{QualifiedName: "A", ContentHash: "1-new"},
		{QualifiedName: "B", ContentHash: "2-new"},
		{QualifiedName: "C", ContentHash: "3-new"},
	}

	result := DiffUnits(old, new)
	assert.True(t, result.FullReindexRecommended)
}

func TestDiffUnitsDoesNotRecommendFullReindexBelowThreshold(t *testing.T) {
	old := []UnitSnapshot{
		{QualifiedName: "A", ContentHash: "1"},
		{QualifiedName: "B", ContentHash: "2"},
		{QualifiedName: "C", ContentHash: "3"},
		{QualifiedName: "D", ContentHash: "4"},
	}
	new := []UnitSnapshot{
		{QualifiedName: "A", ContentHash: "1-new"},
		{QualifiedName: "B", ContentHash: "2"},
		{QualifiedName: "C", ContentHash: "3"},
		{QualifiedName: "D", ContentHash: "4"},
	}

	result := DiffUnits(old, new)
	assert.False(t, result.FullReindexRecommended)
}

func TestDiffFilesEmptyInputsYieldNoChanges(t *testing.T) {
	result := DiffFiles(map[string]FileSnapshot{}, map[string]FileSnapshot{})
	assert.Empty(t, result.Changes)
}

func TestShingleJaccardIdenticalTextIsOne(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	assert.Equal(t, 1.0, jaccard(shingles(text), shingles(text)))
}
