package parser

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/kotlin"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/swift"
	"github.com/smacker/go-tree-sitter/toml"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// LanguageConfig describes the tree-sitter node kinds that define each
// unit category for one language.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	StructTypes    []string
	InterfaceTypes []string
	TraitTypes     []string
	ModuleTypes    []string
	// LineComment is the single-line comment prefix used for docstring
	// lookbehind (e.g. "//", "#", "--"). Empty means no comment-based
	// docstrings are attempted for this language.
	LineComment string
}

// LanguageRegistry maps file extensions and language names to tree-sitter
// grammars and their SemanticUnit node-kind configuration.
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
	// noGrammarExts are recognized extensions with no tree-sitter grammar
	// in this family (currently only .json). They are not errors: the
	// parser returns an empty result for them, same as any language that
	// simply has no function-like constructs.
	noGrammarExts map[string]bool
}

// NewLanguageRegistry builds the registry for the full supported roster.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:       make(map[string]*LanguageConfig),
		extToLang:     make(map[string]string),
		tsLanguages:   make(map[string]*sitter.Language),
		noGrammarExts: map[string]bool{".json": true},
	}

	r.registerGo()
	r.registerTypeScriptFamily()
	r.registerPython()
	r.registerJava()
	r.registerC()
	r.registerCPP()
	r.registerCSharp()
	r.registerPHP()
	r.registerRuby()
	r.registerRust()
	r.registerSwift()
	r.registerKotlin()
	r.registerSQL()
	r.registerYAML()
	r.registerTOML()

	return r
}

func (r *LanguageRegistry) registerLanguage(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// GetByExtension returns the language config for a normalized file extension.
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = normalizeExt(ext)
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// IsKnownNoGrammarExtension reports whether ext is a recognized extension
// that has no tree-sitter grammar in this family (e.g. .json).
func (r *LanguageRegistry) IsKnownNoGrammarExtension(ext string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.noGrammarExts[normalizeExt(ext)]
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// GetByName returns the language config by its canonical name.
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetTreeSitterLanguage returns the grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns every file extension the registry recognizes,
// including extensions with no tree-sitter grammar (e.g. .json).
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.extToLang)+len(r.noGrammarExts))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	for ext := range r.noGrammarExts {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerGo() {
	r.registerLanguage(&LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		StructTypes:   []string{"type_declaration"},
		LineComment:   "//",
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScriptFamily() {
	tsCfg := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		LineComment:    "//",
	}
	r.registerLanguage(tsCfg, typescript.GetLanguage())

	tsxCfg := *tsCfg
	tsxCfg.Name = "tsx"
	tsxCfg.Extensions = []string{".tsx"}
	r.registerLanguage(&tsxCfg, tsx.GetLanguage())

	jsCfg := &LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js"},
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		LineComment:   "//",
	}
	r.registerLanguage(jsCfg, javascript.GetLanguage())

	jsxCfg := *jsCfg
	jsxCfg.Name = "jsx"
	jsxCfg.Extensions = []string{".jsx"}
	r.registerLanguage(&jsxCfg, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.registerLanguage(&LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		LineComment:   "#",
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerJava() {
	r.registerLanguage(&LanguageConfig{
		Name:           "java",
		Extensions:     []string{".java"},
		MethodTypes:    []string{"method_declaration", "constructor_declaration"},
		ClassTypes:     []string{"class_declaration", "enum_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		LineComment:    "//",
	}, java.GetLanguage())
}

func (r *LanguageRegistry) registerC() {
	r.registerLanguage(&LanguageConfig{
		Name:          "c",
		Extensions:    []string{".c", ".h"},
		FunctionTypes: []string{"function_definition"},
		StructTypes:   []string{"struct_specifier", "type_definition"},
		LineComment:   "//",
	}, c.GetLanguage())
}

func (r *LanguageRegistry) registerCPP() {
	r.registerLanguage(&LanguageConfig{
		Name:          "cpp",
		Extensions:    []string{".cpp", ".hpp", ".cc", ".cxx"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_specifier"},
		StructTypes:   []string{"struct_specifier"},
		LineComment:   "//",
	}, cpp.GetLanguage())
}

func (r *LanguageRegistry) registerCSharp() {
	r.registerLanguage(&LanguageConfig{
		Name:           "csharp",
		Extensions:     []string{".cs"},
		MethodTypes:    []string{"method_declaration", "constructor_declaration"},
		ClassTypes:     []string{"class_declaration"},
		StructTypes:    []string{"struct_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		LineComment:    "//",
	}, csharp.GetLanguage())
}

func (r *LanguageRegistry) registerPHP() {
	r.registerLanguage(&LanguageConfig{
		Name:          "php",
		Extensions:    []string{".php"},
		FunctionTypes: []string{"function_definition"},
		MethodTypes:   []string{"method_declaration"},
		ClassTypes:    []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		LineComment:   "//",
	}, php.GetLanguage())
}

func (r *LanguageRegistry) registerRuby() {
	r.registerLanguage(&LanguageConfig{
		Name:        "ruby",
		Extensions:  []string{".rb"},
		MethodTypes: []string{"method", "singleton_method"},
		ClassTypes:  []string{"class"},
		ModuleTypes: []string{"module"},
		LineComment: "#",
	}, ruby.GetLanguage())
}

func (r *LanguageRegistry) registerRust() {
	r.registerLanguage(&LanguageConfig{
		Name:          "rust",
		Extensions:    []string{".rs"},
		FunctionTypes: []string{"function_item"},
		StructTypes:   []string{"struct_item", "enum_item"},
		TraitTypes:    []string{"trait_item"},
		ModuleTypes:   []string{"mod_item"},
		LineComment:   "//",
	}, rust.GetLanguage())
}

func (r *LanguageRegistry) registerSwift() {
	r.registerLanguage(&LanguageConfig{
		Name:           "swift",
		Extensions:     []string{".swift"},
		FunctionTypes:  []string{"function_declaration"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"protocol_declaration"},
		LineComment:    "//",
	}, swift.GetLanguage())
}

func (r *LanguageRegistry) registerKotlin() {
	r.registerLanguage(&LanguageConfig{
		Name:          "kotlin",
		Extensions:    []string{".kt", ".kts"},
		FunctionTypes: []string{"function_declaration"},
		ClassTypes:    []string{"class_declaration"},
		LineComment:   "//",
	}, kotlin.GetLanguage())
}

func (r *LanguageRegistry) registerSQL() {
	// SQL has no function/type-defining constructs relevant to SemanticUnit
	// extraction in the dialect-neutral grammar; files are recognized
	// but always yield zero units, the same documented behavior as json.
	r.registerLanguage(&LanguageConfig{
		Name:       "sql",
		Extensions: []string{".sql"},
		LineComment: "--",
	}, sql.GetLanguage())
}

func (r *LanguageRegistry) registerYAML() {
	r.registerLanguage(&LanguageConfig{
		Name:        "yaml",
		Extensions:  []string{".yaml", ".yml"},
		LineComment: "#",
	}, yaml.GetLanguage())
}

func (r *LanguageRegistry) registerTOML() {
	r.registerLanguage(&LanguageConfig{
		Name:        "toml",
		Extensions:  []string{".toml"},
		LineComment: "#",
	}, toml.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}
