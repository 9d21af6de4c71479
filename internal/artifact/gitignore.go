package artifact

import (
	"bufio"
	"bytes"
	"strings"
)

// GitignorePurpose is the purpose tag of ignore-list proposals.
const GitignorePurpose = "update-gitignore"

// MergeLines appends every entry missing from existing and returns the new
// content plus the entries that were added. Comparison ignores
// surrounding whitespace; blank entries and duplicates are skipped. The
// existing content is kept byte for byte, and a trailing newline is
// ensured before appending.
func MergeLines(existing []byte, entries []string) ([]byte, []string) {
	present := map[string]bool{}
	sc := bufio.NewScanner(bytes.NewReader(existing))
	sc.Buffer(make([]byte, 0, 64*1024), len(existing)+1)
	for sc.Scan() {
		present[strings.TrimSpace(sc.Text())] = true
	}

	var added []string
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || present[e] {
			continue
		}
		present[e] = true
		added = append(added, e)
	}
	if len(added) == 0 {
		return existing, nil
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}
	for _, e := range added {
		buf.WriteString(e)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), added
}
