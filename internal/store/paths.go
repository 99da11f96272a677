package store

import "path/filepath"

const DefaultVersionsFile = "versions.toml"

func VersionsPath(root, file string) string {
	if file == "" {
		file = DefaultVersionsFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(root, file)
}

func AuditPath(root string) string {
	return filepath.Join(root, "audit.log")
}
