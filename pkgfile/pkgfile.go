// Package pkgfile reads code commit hashes out of debian Packages indexes.
// The package build procedure stamps each stanza with a vendor field naming
// the commit the package was built from, which lets a package repository
// stand in for an old branch when comparing against gerrit.
package pkgfile

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// CodeShaField is the vendor control field carrying the built commit's hash.
const CodeShaField = "Private-Mcp-Code-Sha"

// CodeShas scans a Packages index and returns every commit hash named by a
// CodeShaField line. Duplicates collapse to their first occurrence; order
// follows the file.
func CodeShas(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pkgfile: %w", err)
	}
	defer f.Close()

	prefix := CodeShaField + ": "
	seen := make(map[string]bool)
	var shas []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		sha := strings.TrimSpace(strings.TrimPrefix(line, prefix))
		if sha == "" || seen[sha] {
			continue
		}
		seen[sha] = true
		shas = append(shas, sha)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("pkgfile: read %s: %w", path, err)
	}
	return shas, nil
}
