package parser

import (
	"strings"
)

// extractName returns the identifier for a unit node. Go/TS/JS/Python get
// grammar-specific field lookups; every other language falls back to the
// first "identifier"-ish child, which covers the common case across the
// C-family, Rust, Ruby, Kotlin, Swift and PHP grammars without needing a
// bespoke field map for each.
func extractName(lang string, node *Node, source []byte) string {
	switch lang {
	case "go":
		return extractGoName(node, source)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSFamilyName(node, source)
	case "python":
		return extractPythonName(node, source)
	default:
		return extractGenericName(node, source)
	}
}

func extractGoName(node *Node, source []byte) string {
	if id := node.FindChildByType("field_identifier"); id != nil {
		return id.GetContent(source)
	}
	if id := node.FindChildByType("identifier"); id != nil {
		return id.GetContent(source)
	}
	if spec := node.FindChildByType("type_spec"); spec != nil {
		if id := spec.FindChildByType("type_identifier"); id != nil {
			return id.GetContent(source)
		}
	}
	return extractGenericName(node, source)
}

func extractJSFamilyName(node *Node, source []byte) string {
	if id := node.FindChildByType("identifier"); id != nil {
		return id.GetContent(source)
	}
	if id := node.FindChildByType("property_identifier"); id != nil {
		return id.GetContent(source)
	}
	if id := node.FindChildByType("type_identifier"); id != nil {
		return id.GetContent(source)
	}
	return extractGenericName(node, source)
}

func extractPythonName(node *Node, source []byte) string {
	if id := node.FindChildByType("identifier"); id != nil {
		return id.GetContent(source)
	}
	return extractGenericName(node, source)
}

func extractGenericName(node *Node, source []byte) string {
	var found string
	node.Walk(func(n *Node) bool {
		if found != "" {
			return false
		}
		switch n.Type {
		case "identifier", "field_identifier", "property_identifier",
			"type_identifier", "constant", "simple_identifier":
			found = n.GetContent(source)
			return false
		}
		return true
	})
	if found == "" {
		return "anonymous"
	}
	return found
}

// extractSignature returns the declaration header of a unit: everything up
// to (but not including) the opening brace of its body, or the first line
// for brace-less languages like Python.
func extractSignature(node *Node, source []byte) string {
	content := node.GetContent(source)
	if body := node.FindChildByType("block"); body != nil {
		if body.StartByte > node.StartByte {
			content = string(source[node.StartByte:body.StartByte])
		}
	} else if idx := strings.IndexByte(content, '{'); idx >= 0 {
		content = content[:idx]
	} else if idx := strings.IndexByte(content, ':'); idx >= 0 && strings.Contains(content[:idx], "def ") {
		content = content[:idx+1]
	}
	content = strings.TrimSpace(content)
	if nl := strings.IndexByte(content, '\n'); nl >= 0 && !strings.Contains(content, "(") {
		content = content[:nl]
	}
	return collapseWhitespace(content)
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// extractDocstring scans backward from a unit's start line over contiguous
// single-line comments, matching the teacher's doc-comment lookbehind. For
// Python it instead looks for a leading string-literal expression statement
// as the first body child.
func extractDocstring(lang string, node *Node, source []byte, lines []string) string {
	if lang == "python" {
		if doc := extractPythonDocstringNode(node, source); doc != "" {
			return doc
		}
	}

	cfg, ok := DefaultRegistry().GetByName(lang)
	if !ok || cfg.LineComment == "" {
		return ""
	}

	startLine := int(node.StartPoint.Row)
	var commentLines []string
	for i := startLine - 1; i >= 0; i-- {
		if i >= len(lines) {
			continue
		}
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			break
		}
		if !strings.HasPrefix(trimmed, cfg.LineComment) {
			break
		}
		text := strings.TrimSpace(strings.TrimPrefix(trimmed, cfg.LineComment))
		commentLines = append([]string{text}, commentLines...)
	}
	return strings.Join(commentLines, "\n")
}

func extractPythonDocstringNode(node *Node, source []byte) string {
	body := node.FindChildByType("block")
	if body == nil {
		return ""
	}
	for _, child := range body.Children {
		if child.Type != "expression_statement" {
			continue
		}
		for _, inner := range child.Children {
			if inner.Type == "string" {
				text := inner.GetContent(source)
				text = strings.Trim(text, "\"'")
				text = strings.TrimPrefix(text, "\"\"")
				text = strings.TrimSuffix(text, "\"\"")
				return strings.TrimSpace(text)
			}
		}
		break
	}
	return ""
}
