package llfs

import "strings"

// splitPath divides an absolute path into its parent directory path and
// final component name, e.g. "/a/b/c" -> ("/a/b", "c"). Matches
// llfs_get_file's validation: the path must be absolute, non-empty, and
// its final component must fit in a directory entry's name field.
func splitPath(path string) (dir, name string, err error) {
	if !strings.HasPrefix(path, "/") {
		return "", "", pathErr(BadPath, path)
	}
	trimmed := strings.TrimSuffix(path, "/")
	if trimmed == "" {
		// The root itself has no parent/name split.
		return "", "", pathErr(BadPath, path)
	}

	idx := strings.LastIndex(trimmed, "/")
	name = trimmed[idx+1:]
	dir = trimmed[:idx]
	if dir == "" {
		dir = "/"
	}

	if name == "" || len(name) > nameLen {
		return "", "", pathErr(BadPath, path)
	}
	return dir, name, nil
}

// splitComponents breaks an absolute path into its non-empty path
// components, e.g. "/a/b/c" -> ["a", "b", "c"]. The root path "/" yields
// an empty slice.
func splitComponents(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, pathErr(BadPath, path)
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" || len(p) > nameLen {
			return nil, pathErr(BadPath, path)
		}
	}
	return parts, nil
}
