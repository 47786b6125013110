package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// unitNodeTypes maps a language's configured tree-sitter node kinds to the
// SemanticUnit type they represent. Map insertion order below doubles as
// priority: a node type registered under more than one category keeps the
// first-set mapping (methods/interfaces/traits win over struct/class).
func unitNodeTypes(cfg *LanguageConfig) map[string]UnitType {
	m := make(map[string]UnitType)
	for _, t := range cfg.FunctionTypes {
		m[t] = UnitTypeFunction
	}
	for _, t := range cfg.MethodTypes {
		m[t] = UnitTypeMethod
	}
	for _, t := range cfg.InterfaceTypes {
		m[t] = UnitTypeInterface
	}
	for _, t := range cfg.TraitTypes {
		m[t] = UnitTypeTrait
	}
	for _, t := range cfg.ClassTypes {
		m[t] = UnitTypeClass
	}
	for _, t := range cfg.StructTypes {
		m[t] = UnitTypeStruct
	}
	for _, t := range cfg.ModuleTypes {
		m[t] = UnitTypeModule
	}
	return m
}

// Parser extracts SemanticUnits from source files.
type Parser struct {
	registry *LanguageRegistry
}

// New returns a Parser bound to the default language registry.
func New() *Parser {
	return &Parser{registry: DefaultRegistry()}
}

// NewWithRegistry returns a Parser bound to a custom registry, mainly for tests.
func NewWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{registry: registry}
}

var binarySniffLen = 8000

// LanguageForPath returns the canonical language name for a file path's
// extension, and whether that extension is recognized at all (including
// extensions with no grammar, like .json).
func (p *Parser) LanguageForPath(path string) (name string, recognized bool) {
	ext := filepath.Ext(path)
	if cfg, ok := p.registry.GetByExtension(ext); ok {
		return cfg.Name, true
	}
	if p.registry.IsKnownNoGrammarExtension(ext) {
		return "", true
	}
	return "", false
}

// SupportedExtensions returns every file extension the bound registry
// recognizes, including no-grammar extensions like .json.
func (p *Parser) SupportedExtensions() []string {
	return p.registry.SupportedExtensions()
}

// Parse extracts SemanticUnits from a single file's source. It never
// returns an error for content problems (syntax errors, oversize files,
// binary content, unsupported languages) — all of those are reported as
// Diagnostics on a valid, possibly-empty ParseResult. Parse only returns a
// non-nil error for context cancellation.
func (p *Parser) Parse(ctx context.Context, path string, source []byte) (ParseResult, error) {
	result := ParseResult{}

	ext := filepath.Ext(path)
	if len(source) > MaxFileBytes {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticSkipped,
			Message: fmt.Sprintf("file exceeds %d bytes, skipped", MaxFileBytes),
		})
		return result, nil
	}
	if looksBinary(source) {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticSkipped,
			Message: "file appears to be binary, skipped",
		})
		return result, nil
	}

	if p.registry.IsKnownNoGrammarExtension(ext) {
		// Recognized extension (.json), no tree-sitter grammar in this
		// family: always an empty result, never a diagnostic — this is
		// expected, not an error condition.
		return result, nil
	}

	cfg, ok := p.registry.GetByExtension(ext)
	if !ok {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticSkipped,
			Message: fmt.Sprintf("no grammar registered for extension %q", ext),
		})
		return result, nil
	}
	result.Language = cfg.Name

	tsp := newTreeSitterParser(p.registry)
	defer tsp.Close()

	tree, err := tsp.Parse(ctx, source, cfg.Name)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticSyntaxError,
			Message: err.Error(),
		})
		return result, nil
	}

	if tree.Root.HasError {
		result.Diagnostics = append(result.Diagnostics, Diagnostic{
			Kind:    DiagnosticSyntaxError,
			Message: "file contains one or more syntax errors; partial AST used",
		})
	}

	lines := strings.Split(string(source), "\n")
	nodeTypes := unitNodeTypes(cfg)

	tree.Root.Walk(func(n *Node) bool {
		if unitType, ok := nodeTypes[n.Type]; ok {
			unit := buildUnit(path, cfg.Name, unitType, n, source, lines)
			result.Units = append(result.Units, unit)
		}
		return true
	})

	result.Imports = extractImports(cfg.Name, tree.Root, source)

	qualify(result.Units, result.Language, path)

	return result, nil
}

func buildUnit(path, language string, unitType UnitType, node *Node, source []byte, lines []string) SemanticUnit {
	content := node.GetContent(source)
	return SemanticUnit{
		FilePath:    path,
		Language:    language,
		UnitType:    unitType,
		Name:        extractName(language, node, source),
		Signature:   extractSignature(node, source),
		Docstring:   extractDocstring(language, node, source, lines),
		Content:     content,
		StartLine:   int(node.StartPoint.Row) + 1,
		EndLine:     int(node.EndPoint.Row) + 1,
		StartByte:   node.StartByte,
		EndByte:     node.EndByte,
		ContentHash: hashContent(content),
	}
}

// qualify builds each unit's QualifiedName as "relativeNamePath.Name",
// prefixing method names with the enclosing class/struct name when one
// contains them by byte range. Units are walked outer-to-inner so a
// class's own qualified name is just its own name; a method inside it
// becomes "Class.Method".
func qualify(units []SemanticUnit, language, path string) {
	for i := range units {
		u := &units[i]
		enclosing := findEnclosingUnit(units, i)
		if enclosing != "" {
			u.QualifiedName = enclosing + "." + u.Name
		} else {
			u.QualifiedName = u.Name
		}
	}
}

func findEnclosingUnit(units []SemanticUnit, idx int) string {
	target := units[idx]
	var bestName string
	var bestSpan uint32 = ^uint32(0)
	for i, u := range units {
		if i == idx {
			continue
		}
		if u.UnitType != UnitTypeClass && u.UnitType != UnitTypeStruct && u.UnitType != UnitTypeModule {
			continue
		}
		if u.StartByte <= target.StartByte && u.EndByte >= target.EndByte {
			span := u.EndByte - u.StartByte
			if span < bestSpan {
				bestSpan = span
				bestName = u.Name
			}
		}
	}
	return bestName
}

// looksBinary applies a simple NUL-byte heuristic over a leading window of
// the file, the same approach the teacher used to skip binary assets
// before attempting to chunk them.
func looksBinary(source []byte) bool {
	window := source
	if len(window) > binarySniffLen {
		window = window[:binarySniffLen]
	}
	return bytes.IndexByte(window, 0) >= 0
}

func extractImports(language string, root *Node, source []byte) []string {
	var imports []string
	switch language {
	case "go":
		for _, n := range root.FindAllByType("import_spec") {
			if pathNode := n.FindChildByType("interpreted_string_literal"); pathNode != nil {
				imports = append(imports, strings.Trim(pathNode.GetContent(source), "\""))
			}
		}
	case "python":
		for _, n := range root.FindAllByType("import_statement") {
			imports = append(imports, strings.TrimSpace(strings.TrimPrefix(n.GetContent(source), "import")))
		}
		for _, n := range root.FindAllByType("import_from_statement") {
			imports = append(imports, strings.TrimSpace(n.GetContent(source)))
		}
	case "typescript", "tsx", "javascript", "jsx":
		for _, n := range root.FindAllByType("import_statement") {
			imports = append(imports, strings.TrimSpace(n.GetContent(source)))
		}
	case "rust":
		for _, n := range root.FindAllByType("use_declaration") {
			imports = append(imports, strings.TrimSpace(n.GetContent(source)))
		}
	case "java":
		for _, n := range root.FindAllByType("import_declaration") {
			imports = append(imports, strings.TrimSpace(n.GetContent(source)))
		}
	}
	return imports
}
