// Package parser extracts SemanticUnits (functions, methods, classes,
// structs, interfaces, traits, modules) from source files using
// tree-sitter grammars, one per supported language.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
)

// UnitType is the kind of code element a SemanticUnit represents.
type UnitType string

const (
	UnitTypeFunction  UnitType = "function"
	UnitTypeMethod    UnitType = "method"
	UnitTypeClass     UnitType = "class"
	UnitTypeStruct    UnitType = "struct"
	UnitTypeInterface UnitType = "interface"
	UnitTypeTrait     UnitType = "trait"
	UnitTypeModule    UnitType = "module"
)

// SemanticUnit is a single parsed code element within a file.
type SemanticUnit struct {
	FilePath     string
	Language     string
	UnitType     UnitType
	Name         string
	QualifiedName string
	Signature    string
	Docstring    string
	Content      string
	StartLine    int
	EndLine      int
	StartByte    uint32
	EndByte      uint32
	ContentHash  string
	Imports      []string
}

// DiagnosticKind classifies a non-fatal parse diagnostic.
type DiagnosticKind string

const (
	DiagnosticIoError    DiagnosticKind = "IoError"
	DiagnosticSkipped    DiagnosticKind = "Skipped"
	DiagnosticSyntaxError DiagnosticKind = "SyntaxError"
)

// Diagnostic is a non-fatal condition encountered while parsing a file.
type Diagnostic struct {
	Kind    DiagnosticKind
	Message string
}

// ParseResult is the output of parsing a single file.
type ParseResult struct {
	Language    string
	Units       []SemanticUnit
	Imports     []string
	Diagnostics []Diagnostic
}

// MaxFileBytes is the default oversize threshold; files larger than this
// yield an empty result with a Skipped diagnostic rather than being parsed.
const MaxFileBytes = 1 << 20 // 1 MiB

// MaxUnitContentBytes bounds a single unit's content (spec data model
// invariant); units larger than this are still kept but flagged oversize
// by the caller rather than silently truncated, since truncating a
// function body would corrupt its signature/content_hash relationship.
const MaxUnitContentBytes = 50_000

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
