package chunk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/driftwood-dev/semcode/internal/parser"
)

// CodeChunker turns a source file into one Chunk per semantic unit that
// internal/parser's tree-sitter grammars recognize: a function, method,
// class, struct, interface, trait, or module-level declaration. Per the
// semantic-unit invariant, a unit is never split or re-combined across
// chunks — one AST node produces exactly one chunk, with RawContent holding
// its exact source range.
type CodeChunker struct {
	parser *parser.Parser
}

// NewCodeChunker creates a code chunker backed by the full tree-sitter
// language roster in internal/parser.
func NewCodeChunker() *CodeChunker {
	return &CodeChunker{parser: parser.New()}
}

// Close is a no-op, kept so callers that type-assert for an optional
// io.Closer-style Close method continue to work unchanged.
func (c *CodeChunker) Close() {}

// SupportedExtensions returns the file extensions internal/parser recognizes.
func (c *CodeChunker) SupportedExtensions() []string {
	return c.parser.SupportedExtensions()
}

// Chunk parses file and emits one Chunk per semantic unit found. Files in a
// language internal/parser doesn't recognize, oversize or binary files, and
// recognized-no-grammar extensions (.json) all yield zero chunks rather than
// a partial or line-split fallback, matching the "unknown extension, no
// grammar -> empty result, not an error" contract the parser itself follows.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	result, err := c.parser.Parse(ctx, file.Path, file.Content)
	if err != nil {
		return nil, err
	}
	if len(result.Units) == 0 {
		return nil, nil
	}

	fileContext := strings.Join(result.Imports, "\n")

	now := time.Now()
	chunks := make([]*Chunk, 0, len(result.Units))
	for i := range result.Units {
		chunks = append(chunks, unitToChunk(file.Path, &result.Units[i], fileContext, now))
	}
	return chunks, nil
}

// unitToChunk converts a parsed SemanticUnit into a retrievable Chunk.
// Content is the BM25-indexable surface (file path, signature, then raw
// body); RawContent is the unit's exact, unmodified source range; Context
// carries the file's own import list, the same scope signal every unit in
// the file shares.
func unitToChunk(filePath string, u *parser.SemanticUnit, fileContext string, now time.Time) *Chunk {
	return &Chunk{
		ID:          generateChunkID(filePath, u.Content),
		FilePath:    filePath,
		Content:     combineSearchSurface(filePath, u.Signature, u.Content),
		RawContent:  u.Content,
		Context:     fileContext,
		ContentType: ContentTypeCode,
		Language:    u.Language,
		StartLine:   u.StartLine,
		EndLine:     u.EndLine,
		Symbols: []*Symbol{{
			Name:       u.Name,
			Type:       symbolTypeForUnit(u.UnitType),
			StartLine:  u.StartLine,
			EndLine:    u.EndLine,
			Signature:  u.Signature,
			DocComment: u.Docstring,
		}},
		Metadata: map[string]string{
			"qualified_name": u.QualifiedName,
			"content_hash":   u.ContentHash,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func symbolTypeForUnit(t parser.UnitType) SymbolType {
	switch t {
	case parser.UnitTypeMethod:
		return SymbolTypeMethod
	case parser.UnitTypeClass:
		return SymbolTypeClass
	case parser.UnitTypeStruct:
		return SymbolTypeStruct
	case parser.UnitTypeInterface:
		return SymbolTypeInterface
	case parser.UnitTypeTrait:
		return SymbolTypeTrait
	case parser.UnitTypeModule:
		return SymbolTypeModule
	default:
		return SymbolTypeFunction
	}
}

// combineSearchSurface builds the text BM25 indexes for a unit: its file
// path, its signature (if any), then its raw content.
func combineSearchSurface(filePath, signature, content string) string {
	var b strings.Builder
	b.WriteString(filePath)
	b.WriteString("\n")
	if signature != "" {
		b.WriteString(signature)
		b.WriteString("\n")
	}
	b.WriteString(content)
	return b.String()
}

// generateChunkID derives a content-addressable chunk ID from the file path
// and content hash, so IDs stay stable across line shifts elsewhere in the
// file and only change when the unit's own content changes (BUG-052).
func generateChunkID(filePath string, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	contentHashStr := hex.EncodeToString(contentHash[:])[:16]

	input := fmt.Sprintf("%s:%s", filePath, contentHashStr)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16]
}

// estimateTokens estimates the number of tokens in content.
func estimateTokens(content string) int {
	return len(content) / TokensPerChar
}
