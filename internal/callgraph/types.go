// Package callgraph persists function nodes and call sites per project and
// answers structural queries (callers, callees, call chains) by BFS over the
// edge list.
package callgraph

// CallType classifies how a callee is invoked at a call site.
type CallType string

const (
	CallTypeDirect      CallType = "direct"
	CallTypeMethod      CallType = "method"
	CallTypeConstructor CallType = "constructor"
	CallTypeAsync       CallType = "async"
)

// FunctionNode is a call-graph vertex: one function or method definition.
type FunctionNode struct {
	ProjectID     string
	QualifiedName string // unique within project
	Name          string
	FilePath      string
	Language      string
	StartLine     int
	EndLine       int
	IsExported    bool
	IsAsync       bool
	Parameters    []string
	ReturnType    string
}

// CallSite is a directed edge: caller invokes callee at a specific line.
// CalleeQualifiedName is empty until the import graph resolves it; unresolved
// sites are still visible as depth-1 neighbors but never traversed further.
type CallSite struct {
	CallerQualifiedName string
	CallerFile          string
	CallerLine          int
	CalleeName          string
	CalleeQualifiedName string
	CallType            CallType
}

// Path is one simple path through the call graph, from the first element to
// the last, inclusive of both endpoints.
type Path struct {
	Nodes []string
}
