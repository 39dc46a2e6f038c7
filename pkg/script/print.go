package script

import (
	"strconv"
	"strings"
)

// Print renders s in canonical text form. Parsing the output yields an
// equivalent script.
func Print(s *Script) string {
	var b strings.Builder
	if s.Package != "" {
		b.WriteString("package " + s.Package + ";\n\n")
	}
	for _, l := range s.Lets {
		b.WriteString("let " + l.Instance + " = new " + l.Target + " {")
		var parts []string
		for _, bind := range l.Bindings {
			parts = append(parts, quote(bind.Import)+": "+bind.Provider+"."+quote(bind.Export))
		}
		if l.Passthrough {
			parts = append(parts, "...")
		}
		if len(parts) > 0 {
			b.WriteString(" " + strings.Join(parts, ", ") + " ")
		}
		b.WriteString("};\n")
	}
	if len(s.Connects) > 0 {
		b.WriteString("\n")
	}
	for _, c := range s.Connects {
		b.WriteString("connect " + c.Consumer + "." + quote(c.Import) + " -> " + c.Provider + "." + quote(c.Export) + ";\n")
	}
	if s.Export != nil {
		b.WriteString("\nexport " + s.Export.Instance + " as " + quote(s.Export.As) + ";\n")
	}
	return b.String()
}

// quote wraps names that are not plain identifiers (qualified interface
// references) in double quotes.
func quote(name string) string {
	if name == "" || !isIdentStart(name[0]) {
		return strconv.Quote(name)
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return strconv.Quote(name)
		}
	}
	if strings.Contains(name, "->") {
		return strconv.Quote(name)
	}
	return name
}
