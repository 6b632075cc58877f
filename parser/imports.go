package parser

import "path"

// ImportHook resolves an import: given the directory of the file doing
// the importing and the literal path written in the import expression,
// it returns the file's contents plus a canonical path used as the
// import-cache key, or an error if the file cannot be read. Hosts may
// substitute an in-memory hook for testing.
type ImportHook func(callerDir, importedPath string) (contents string, canonical string, err error)

// dirOf returns the logical directory of a (possibly virtual) file path,
// using forward-slash path semantics regardless of host OS — Jsonnet
// import paths are not filesystem paths.
func dirOf(file string) string {
	return path.Dir(file)
}
