// Package changedetect compares two file-set snapshots and classifies
// each path as added, deleted, modified or renamed, and diffs the
// SemanticUnits within a single file between two parses.
package changedetect

import (
	"sort"
)

// FileSnapshot is the state of one file at a point in time, as tracked by
// the indexer for change detection.
type FileSnapshot struct {
	Path        string
	ContentHash string
	// Content is only needed for rename-candidate similarity scoring; it
	// may be left empty if the caller has already ruled out renames.
	Content string
}

// FileChangeKind classifies how a path differs between two snapshots.
type FileChangeKind string

const (
	FileAdded    FileChangeKind = "added"
	FileDeleted  FileChangeKind = "deleted"
	FileModified FileChangeKind = "modified"
	FileRenamed  FileChangeKind = "renamed"
)

// FileChange describes one path's transition between snapshots. OldPath is
// only set for FileRenamed.
type FileChange struct {
	Path    string
	OldPath string
	Kind    FileChangeKind
}

// FileChanges is the full diff between two file-set snapshots.
type FileChanges struct {
	Changes []FileChange
}

// RenameSimilarityThreshold is the minimum Jaccard similarity of trigram
// shingles between a deleted file and an added file for the pair to be
// classified as a rename rather than an independent delete+add.
const RenameSimilarityThreshold = 0.80

// ShingleSize is the trigram window used for rename-candidate similarity.
const ShingleSize = 3

// DiffFiles compares two path→FileSnapshot maps and classifies every path
// as added, deleted, modified or renamed. Renames are detected by pairing
// deleted and added files whose shingle-Jaccard similarity meets
// RenameSimilarityThreshold; each side of a rename pair is consumed at
// most once, preferring the highest-similarity pairing first.
func DiffFiles(old, new map[string]FileSnapshot) FileChanges {
	var deleted, added []string

	for path := range old {
		if _, ok := new[path]; !ok {
			deleted = append(deleted, path)
		}
	}
	for path := range new {
		if _, ok := old[path]; !ok {
			added = append(added, path)
		}
	}

	sort.Strings(deleted)
	sort.Strings(added)

	renamedDeleted := make(map[string]bool, len(deleted))
	renamedAdded := make(map[string]bool, len(added))
	var changes []FileChange

	type candidate struct {
		deletedPath, addedPath string
		similarity             float64
	}
	var candidates []candidate
	for _, d := range deleted {
		dShingles := shingles(old[d].Content)
		for _, a := range added {
			sim := jaccard(dShingles, shingles(new[a].Content))
			if sim >= RenameSimilarityThreshold {
				candidates = append(candidates, candidate{d, a, sim})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].similarity > candidates[j].similarity
	})
	for _, c := range candidates {
		if renamedDeleted[c.deletedPath] || renamedAdded[c.addedPath] {
			continue
		}
		renamedDeleted[c.deletedPath] = true
		renamedAdded[c.addedPath] = true
		changes = append(changes, FileChange{Path: c.addedPath, OldPath: c.deletedPath, Kind: FileRenamed})
	}

	for _, d := range deleted {
		if !renamedDeleted[d] {
			changes = append(changes, FileChange{Path: d, Kind: FileDeleted})
		}
	}
	for _, a := range added {
		if !renamedAdded[a] {
			changes = append(changes, FileChange{Path: a, Kind: FileAdded})
		}
	}

	var modifiedPaths []string
	for path, oldSnap := range old {
		newSnap, ok := new[path]
		if ok && newSnap.ContentHash != oldSnap.ContentHash {
			modifiedPaths = append(modifiedPaths, path)
		}
	}
	sort.Strings(modifiedPaths)
	for _, p := range modifiedPaths {
		changes = append(changes, FileChange{Path: p, Kind: FileModified})
	}

	return FileChanges{Changes: changes}
}

// shingles splits text into lowercase word tokens and returns the set of
// contiguous ShingleSize-token windows, joined by a separator unlikely to
// appear in source text.
func shingles(text string) map[string]bool {
	tokens := tokenize(text)
	set := make(map[string]bool)
	if len(tokens) < ShingleSize {
		if len(tokens) > 0 {
			set[joinTokens(tokens)] = true
		}
		return set
	}
	for i := 0; i+ShingleSize <= len(tokens); i++ {
		set[joinTokens(tokens[i:i+ShingleSize])] = true
	}
	return set
}

func tokenize(text string) []string {
	var tokens []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}
	for _, r := range text {
		if isWordRune(r) {
			current = append(current, r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_'
}

func joinTokens(tokens []string) string {
	out := tokens[0]
	for _, t := range tokens[1:] {
		out += "\x00" + t
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for k := range a {
		if b[k] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

// UnitSnapshot is the minimal state of one SemanticUnit needed for
// unit-level diffing, keyed by QualifiedName within a single file.
type UnitSnapshot struct {
	QualifiedName string
	ContentHash   string
}

// UnitChangeKind classifies a unit's transition between two parses of the
// same file.
type UnitChangeKind string

const (
	UnitAdded     UnitChangeKind = "added"
	UnitDeleted   UnitChangeKind = "deleted"
	UnitModified  UnitChangeKind = "modified"
	UnitUnchanged UnitChangeKind = "unchanged"
)

// UnitChange describes one unit's transition.
type UnitChange struct {
	QualifiedName string
	Kind          UnitChangeKind
}

// FullReindexThreshold is the changed-unit fraction above which the
// planner should prefer a full-file reindex over incremental unit
// patching.
const FullReindexThreshold = 0.70

// UnitChanges is the full diff between two parses of one file.
type UnitChanges struct {
	Changes                []UnitChange
	FullReindexRecommended bool
}

// DiffUnits compares old and new SemanticUnit snapshots for a single file,
// keyed by QualifiedName. Unchanged units (same qualified name, same
// content hash) are reported so callers can skip re-embedding them, not
// omitted from the result.
func DiffUnits(old, new []UnitSnapshot) UnitChanges {
	oldByName := make(map[string]UnitSnapshot, len(old))
	for _, u := range old {
		oldByName[u.QualifiedName] = u
	}
	newByName := make(map[string]UnitSnapshot, len(new))
	for _, u := range new {
		newByName[u.QualifiedName] = u
	}

	var changes []UnitChange
	changed := 0

	var names []string
	for name := range oldByName {
		names = append(names, name)
	}
	for name := range newByName {
		if _, ok := oldByName[name]; !ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldUnit, hasOld := oldByName[name]
		newUnit, hasNew := newByName[name]
		switch {
		case hasOld && !hasNew:
			changes = append(changes, UnitChange{QualifiedName: name, Kind: UnitDeleted})
			changed++
		case !hasOld && hasNew:
			changes = append(changes, UnitChange{QualifiedName: name, Kind: UnitAdded})
			changed++
		case oldUnit.ContentHash != newUnit.ContentHash:
			changes = append(changes, UnitChange{QualifiedName: name, Kind: UnitModified})
			changed++
		default:
			changes = append(changes, UnitChange{QualifiedName: name, Kind: UnitUnchanged})
		}
	}

	total := len(names)
	recommend := total > 0 && float64(changed)/float64(total) > FullReindexThreshold

	return UnitChanges{Changes: changes, FullReindexRecommended: recommend}
}
