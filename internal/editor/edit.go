package editor

import (
	"encoding/json"
	"strings"
)

// EditKind classifies a single-line change.
type EditKind int

const (
	Insert EditKind = iota + 1
	Delete
	Replace
)

var editKindNames = map[EditKind]string{
	Insert:  "insert",
	Delete:  "delete",
	Replace: "replace",
}

var editKindFromName = map[string]EditKind{
	"insert":  Insert,
	"delete":  Delete,
	"replace": Replace,
}

func (k EditKind) String() string {
	if s, ok := editKindNames[k]; ok {
		return s
	}
	return "unknown"
}

func (k EditKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *EditKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if v, ok := editKindFromName[s]; ok {
		*k = v
	}
	return nil
}

// Edit is a change to one line of the shared buffer. Line numbers are
// 1-based. Position is the column for insert/delete; nil means end of line.
type Edit struct {
	Line     int
	Position *int
	Content  string
	Kind     EditKind
}

// applyEdit applies a line edit to the buffer, growing it with empty lines
// when the edit targets a line past the end. Conflicts are prevented
// upstream by line locks, so this just overwrites.
func applyEdit(code string, ed Edit) string {
	lines := strings.Split(code, "\n")
	idx := ed.Line - 1
	if idx < 0 {
		return code
	}
	for len(lines) <= idx {
		lines = append(lines, "")
	}

	line := lines[idx]
	switch ed.Kind {
	case Insert:
		pos := len(line)
		if ed.Position != nil {
			pos = *ed.Position
		}
		if pos < 0 {
			pos = 0
		}
		if pos > len(line) {
			pos = len(line)
		}
		lines[idx] = line[:pos] + ed.Content + line[pos:]
	case Delete:
		pos := len(line)
		if ed.Position != nil {
			pos = *ed.Position
		}
		n := 1
		if ed.Content != "" {
			n = len(ed.Content)
		}
		if pos >= 0 && pos < len(line) {
			if pos+n > len(line) {
				n = len(line) - pos
			}
			lines[idx] = line[:pos] + line[pos+n:]
		}
	case Replace:
		lines[idx] = ed.Content
	}

	return strings.Join(lines, "\n")
}
