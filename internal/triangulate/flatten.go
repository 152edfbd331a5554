package triangulate

import "strings"

// Flatten converts a nested map into dotted leaf paths. Arrays are kept as
// leaf values so element agreement is judged as a whole.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]any, prefix string, data map[string]any) {
	for k, v := range data {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			flattenInto(out, path, m)
			continue
		}
		out[path] = v
	}
}

// Unflatten rebuilds a nested map from dotted paths. A leaf that collides
// with an existing subtree is dropped in favor of the subtree.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for path, v := range flat {
		parts := strings.Split(path, ".")
		node := out
		for i, p := range parts {
			if i == len(parts)-1 {
				if _, exists := node[p].(map[string]any); !exists {
					node[p] = v
				}
				break
			}
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
	}
	return out
}
