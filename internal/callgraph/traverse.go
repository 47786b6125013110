package callgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// neighbor is one adjacency-list entry: the resolved qualified name when
// known, else empty with only a display name.
type neighbor struct {
	qualifiedName string
	name          string
}

func neighborKey(n neighbor) string {
	if n.qualifiedName != "" {
		return n.qualifiedName
	}
	return "unresolved:" + n.name
}

// buildAdjacency turns the project's edge list into a forward (caller ->
// callees) or reverse (callee -> callers) adjacency map, deduplicated and
// sorted by qualified name (falling back to display name for unresolved
// callees) so BFS visits neighbors in a deterministic tie-broken order.
func buildAdjacency(edges []edge, forward bool) map[string][]neighbor {
	adj := make(map[string][]neighbor)
	seen := make(map[string]map[string]bool)

	for _, e := range edges {
		var from string
		var to neighbor
		if forward {
			from = e.caller
			to = neighbor{qualifiedName: e.callee, name: e.calleeName}
		} else {
			if e.callee == "" {
				continue // unresolved edges have no reverse direction to traverse
			}
			from = e.callee
			to = neighbor{qualifiedName: e.caller, name: e.caller}
		}

		key := neighborKey(to)
		if seen[from] == nil {
			seen[from] = make(map[string]bool)
		}
		if seen[from][key] {
			continue
		}
		seen[from][key] = true
		adj[from] = append(adj[from], to)
	}

	for from := range adj {
		list := adj[from]
		sort.Slice(list, func(i, j int) bool {
			return neighborKey(list[i]) < neighborKey(list[j])
		})
	}
	return adj
}

// traverse runs a breadth-first search over the call graph from start.
// Direct neighbors (depth 1) are always included, even when unresolved or
// when includeIndirect is false; traversal continues past depth 1 only when
// includeIndirect is true and the depth budget allows it.
func (s *Store) traverse(ctx context.Context, projectID, start string, maxDepth int, includeIndirect, forward bool) ([]*FunctionNode, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}

	edges, err := s.loadEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	adj := buildAdjacency(edges, forward)

	type queueItem struct {
		key   string
		depth int
	}

	visited := map[string]bool{start: true}
	queue := []queueItem{{start, 0}}
	var orderedKeys []string
	displayName := make(map[string]string)

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		for _, n := range adj[item.key] {
			key := neighborKey(n)
			if visited[key] {
				continue
			}
			visited[key] = true
			orderedKeys = append(orderedKeys, key)
			displayName[key] = n.name

			if n.qualifiedName != "" && includeIndirect && item.depth+1 < maxDepth {
				queue = append(queue, queueItem{n.qualifiedName, item.depth + 1})
			}
		}
	}

	resolvedNames := make([]string, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		if !strings.HasPrefix(key, "unresolved:") {
			resolvedNames = append(resolvedNames, key)
		}
	}
	resolved, err := s.getFunctionsByNames(ctx, projectID, resolvedNames)
	if err != nil {
		return nil, err
	}

	nodes := make([]*FunctionNode, 0, len(orderedKeys))
	for _, key := range orderedKeys {
		if node, ok := resolved[key]; ok {
			nodes = append(nodes, node)
			continue
		}
		node := &FunctionNode{ProjectID: projectID, Name: displayName[key]}
		if !strings.HasPrefix(key, "unresolved:") {
			node.QualifiedName = key
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Callees returns the functions start calls, in BFS order (ties broken by
// qualified name). Unresolved callees appear at depth 1 as a FunctionNode
// with only a Name set, and are never traversed further.
func (s *Store) Callees(ctx context.Context, projectID, qualifiedName string, maxDepth int, includeIndirect bool) ([]*FunctionNode, error) {
	return s.traverse(ctx, projectID, qualifiedName, maxDepth, includeIndirect, true)
}

// Callers returns the functions that call start, symmetric to Callees.
func (s *Store) Callers(ctx context.Context, projectID, qualifiedName string, maxDepth int, includeIndirect bool) ([]*FunctionNode, error) {
	return s.traverse(ctx, projectID, qualifiedName, maxDepth, includeIndirect, false)
}

// CallChain enumerates up to maxPaths shortest simple paths from `from` to
// `to`, stopping once a path length has been found and every path of that
// length (up to maxPaths) has been collected.
func (s *Store) CallChain(ctx context.Context, projectID, from, to string, maxDepth, maxPaths int) ([]Path, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxPaths < 1 {
		maxPaths = 1
	}

	edges, err := s.loadEdges(ctx, projectID)
	if err != nil {
		return nil, err
	}
	adj := buildAdjacency(edges, true)

	type queueItem struct{ path []string }
	queue := []queueItem{{[]string{from}}}

	var results []Path
	shortest := -1

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		depth := len(item.path) - 1

		if shortest != -1 && depth >= shortest {
			continue // only paths shorter than the first found length can still matter
		}
		if depth >= maxDepth {
			continue
		}

		current := item.path[len(item.path)-1]
		for _, n := range adj[current] {
			if n.qualifiedName == "" || containsString(item.path, n.qualifiedName) {
				continue
			}

			nextPath := append(append([]string{}, item.path...), n.qualifiedName)
			if n.qualifiedName == to {
				if shortest == -1 {
					shortest = depth + 1
				}
				results = append(results, Path{Nodes: nextPath})
				if len(results) >= maxPaths {
					return results, nil
				}
				continue
			}
			queue = append(queue, queueItem{nextPath})
		}
	}

	return results, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (s *Store) getFunctionsByNames(ctx context.Context, projectID string, names []string) (map[string]*FunctionNode, error) {
	result := make(map[string]*FunctionNode)
	if len(names) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(names))
	args := make([]any, 0, len(names)+1)
	args = append(args, projectID)
	for i, name := range names {
		placeholders[i] = "?"
		args = append(args, name)
	}

	query := fmt.Sprintf(`
		SELECT qualified_name, name, file_path, language, start_line, end_line, is_exported, is_async,
			parameters_json, return_type
		FROM functions WHERE project_id = ? AND qualified_name IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to batch-load functions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var node FunctionNode
		var paramsJSON string
		node.ProjectID = projectID
		if err := rows.Scan(&node.QualifiedName, &node.Name, &node.FilePath, &node.Language,
			&node.StartLine, &node.EndLine, &node.IsExported, &node.IsAsync, &paramsJSON, &node.ReturnType); err != nil {
			return nil, err
		}
		if paramsJSON != "" {
			if err := unmarshalParams(paramsJSON, &node.Parameters); err != nil {
				return nil, fmt.Errorf("failed to unmarshal parameters for %s: %w", node.QualifiedName, err)
			}
		}
		result[node.QualifiedName] = &node
	}
	return result, rows.Err()
}
