package analysis

import (
	"regexp"
	"strings"
)

// ScopeKind classifies what a brace-delimited region most likely is.
type ScopeKind int

const (
	ScopeFile ScopeKind = iota
	ScopeNamespace
	ScopeType
	ScopeEnum
	ScopeFunction
	ScopeBlock
	ScopeLoop
	ScopeInit
)

// Scope is a brace-delimited region together with the header text that
// preceded its opening brace.
type Scope struct {
	Kind       ScopeKind
	Name       string   // type or namespace name, empty otherwise
	Bases      []string // base types for ScopeType
	Header     string   // collapsed header text
	HeaderLine int      // line where the header starts
	OpenLine   int      // line holding the opening brace
	CloseLine  int      // line holding the closing brace (last line if unclosed)
	Parent     int      // index of the enclosing scope, -1 at file level
	Closed     bool

	savedHeader string
	savedLine   int
	savedParens int
}

// Line is one line of the snippet with its masked code and structural context.
type Line struct {
	Num   int    // 1-based line number
	Raw   string // original text without terminator
	Code  string // Raw with comments and literal contents blanked
	Depth int    // brace depth at the start of the line
	Scope int    // innermost scope index at the start of the line, -1 at file level
}

// View is the lightweight structural view rules operate on. It is built
// without parsing and never fails: unrecognized constructs are simply
// classified as plain blocks.
type View struct {
	Lines  []Line
	Scopes []Scope

	// Unbalanced is set when a closing brace had no matching opener or
	// scopes remained open at the end of the text.
	Unbalanced bool
}

// Scan builds the structural view of text.
func Scan(text string) *View {
	raw := SplitLines(text)
	masked := maskLines(raw)

	v := &View{Lines: make([]Line, len(raw))}

	var (
		stack      []int
		header     strings.Builder
		headerLine int
		parens     int // open parentheses in the current header
	)

	top := func() int {
		if len(stack) == 0 {
			return -1
		}
		return stack[len(stack)-1]
	}

	resetHeader := func() {
		header.Reset()
		headerLine = 0
		parens = 0
	}

	for i, code := range masked {
		num := i + 1
		v.Lines[i] = Line{Num: num, Raw: raw[i], Code: code, Depth: len(stack), Scope: top()}

		if strings.HasPrefix(strings.TrimSpace(code), "#") {
			continue
		}

		for _, r := range code {
			switch r {
			case '{':
				parent := top()
				kind, name, bases := classify(header.String(), v.kindOf(parent))
				hl := headerLine
				if hl == 0 {
					hl = num
				}
				s := Scope{
					Kind:       kind,
					Name:       name,
					Bases:      bases,
					Header:     collapse(header.String()),
					HeaderLine: hl,
					OpenLine:   num,
					Parent:     parent,
				}
				if kind == ScopeInit || parens > 0 {
					s.savedHeader = header.String()
					s.savedLine = headerLine
					s.savedParens = parens
				}
				v.Scopes = append(v.Scopes, s)
				stack = append(stack, len(v.Scopes)-1)
				resetHeader()
			case '}':
				if len(stack) == 0 {
					v.Unbalanced = true
					resetHeader()
					continue
				}
				idx := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				v.Scopes[idx].CloseLine = num
				v.Scopes[idx].Closed = true
				resetHeader()
				if closed := v.Scopes[idx]; closed.Kind == ScopeInit || closed.savedParens > 0 {
					// brace initializers and lambdas passed as arguments are
					// part of the enclosing statement
					header.WriteString(closed.savedHeader)
					header.WriteString("{}")
					headerLine = closed.savedLine
					parens = closed.savedParens
				}
			case ';':
				if parens == 0 {
					resetHeader()
				} else {
					header.WriteRune(r)
				}
			case '(':
				parens++
				header.WriteRune(r)
			case ')':
				if parens > 0 {
					parens--
				}
				header.WriteRune(r)
			default:
				if headerLine == 0 && r != ' ' && r != '\t' {
					headerLine = num
				}
				header.WriteRune(r)
			}
		}
		if header.Len() > 0 {
			header.WriteByte(' ')
		}
	}

	if len(stack) > 0 {
		v.Unbalanced = true
		for _, idx := range stack {
			v.Scopes[idx].CloseLine = len(raw)
		}
	}

	return v
}

func (v *View) kindOf(idx int) ScopeKind {
	if idx < 0 {
		return ScopeFile
	}
	return v.Scopes[idx].Kind
}

// InFunction reports whether the line starts inside a function body.
func (v *View) InFunction(l Line) bool {
	for idx := l.Scope; idx >= 0; idx = v.Scopes[idx].Parent {
		switch v.Scopes[idx].Kind {
		case ScopeFunction:
			return true
		case ScopeType, ScopeNamespace:
			return false
		}
	}
	return false
}

// InLoop reports whether the line starts inside the body of a loop.
func (v *View) InLoop(l Line) bool {
	for idx := l.Scope; idx >= 0; idx = v.Scopes[idx].Parent {
		switch v.Scopes[idx].Kind {
		case ScopeLoop:
			return true
		case ScopeFunction, ScopeType, ScopeNamespace:
			return false
		}
	}
	return false
}

// AtDeclarationLevel reports whether the line starts at file or namespace level.
func (v *View) AtDeclarationLevel(l Line) bool {
	k := v.kindOf(l.Scope)
	return k == ScopeFile || k == ScopeNamespace
}

// Members returns the lines whose innermost scope is the given scope.
func (v *View) Members(idx int) []Line {
	s := v.Scopes[idx]
	var out []Line
	for n := s.OpenLine; n <= s.CloseLine && n <= len(v.Lines); n++ {
		l := v.Lines[n-1]
		if l.Scope == idx {
			out = append(out, l)
		}
	}
	return out
}

// Contains reports whether any masked code line contains one of the tokens.
func (v *View) Contains(tokens ...string) bool {
	for _, l := range v.Lines {
		for _, t := range tokens {
			if strings.Contains(l.Code, t) {
				return true
			}
		}
	}
	return false
}

var (
	reTemplatePrefix = regexp.MustCompile(`^\s*template\s*<`)
	reTypeHeader     = regexp.MustCompile(`\b(class|struct|union)\s+(?:alignas\s*\([^)]*\)\s*)?([A-Za-z_]\w*)`)
	reEnumHeader     = regexp.MustCompile(`\benum\b`)
	reNamespace      = regexp.MustCompile(`\bnamespace\b\s*([\w:]*)`)
	reLoopHeader     = regexp.MustCompile(`^(?:[\w:]+\s*:\s*)?(for|while|do)\b`)
	reTrailingQual   = regexp.MustCompile(`(?:\s*(?:const|override|final|noexcept(?:\s*\([^)]*\))?|mutable|volatile|&&|&|->\s*[\w:<>,\s\*&]+))*\s*$`)
	reExternLinkage  = regexp.MustCompile(`^extern\s*"`)
)

// classify guesses the scope kind from the code preceding an opening brace.
func classify(header string, parent ScopeKind) (ScopeKind, string, []string) {
	h := collapse(header)
	h = stripTemplatePrefix(h)

	if m := reNamespace.FindStringSubmatch(h); m != nil && !strings.Contains(h, "(") {
		return ScopeNamespace, m[1], nil
	}
	if reExternLinkage.MatchString(h) {
		return ScopeNamespace, "", nil
	}

	inCode := parent == ScopeFunction || parent == ScopeBlock || parent == ScopeLoop

	if !inCode || !strings.Contains(h, "(") {
		if reEnumHeader.MatchString(h) {
			return ScopeEnum, "", nil
		}
		if m := reTypeHeader.FindStringSubmatchIndex(h); m != nil && !strings.Contains(h[:m[0]], "(") && !strings.HasSuffix(h, "=") {
			name := h[m[4]:m[5]]
			return ScopeType, name, parseBases(h[m[1]:])
		}
	}

	if h == "" {
		if inCode {
			return ScopeBlock, "", nil
		}
		if parent == ScopeInit {
			return ScopeInit, "", nil
		}
		return ScopeBlock, "", nil
	}

	if endsWithInitializer(h) {
		return ScopeInit, "", nil
	}

	if inCode {
		if reLoopHeader.MatchString(h) {
			return ScopeLoop, "", nil
		}
		if isIdentEnd(h) && !isControlKeyword(lastWord(h)) {
			return ScopeInit, "", nil
		}
		return ScopeBlock, "", nil
	}

	if parent == ScopeInit || parent == ScopeEnum {
		return ScopeInit, "", nil
	}

	trimmed := reTrailingQual.ReplaceAllString(h, "")
	if strings.HasSuffix(trimmed, ")") {
		return ScopeFunction, "", nil
	}
	if isIdentEnd(h) || strings.HasSuffix(h, "]") {
		return ScopeInit, "", nil
	}
	if strings.Contains(h, ") :") || strings.Contains(h, "):") {
		return ScopeFunction, "", nil
	}
	return ScopeBlock, "", nil
}

func endsWithInitializer(h string) bool {
	for _, suffix := range []string{"=", ",", "(", "return", "[", "?"} {
		if strings.HasSuffix(h, suffix) {
			return true
		}
	}
	return false
}

func stripTemplatePrefix(h string) string {
	for reTemplatePrefix.MatchString(h) {
		start := strings.Index(h, "<")
		depth := 0
		end := -1
		for i := start; i < len(h); i++ {
			switch h[i] {
			case '<':
				depth++
			case '>':
				depth--
				if depth == 0 {
					end = i
				}
			}
			if end >= 0 {
				break
			}
		}
		if end < 0 {
			return h
		}
		h = strings.TrimSpace(h[end+1:])
	}
	return h
}

func parseBases(rest string) []string {
	rest = strings.TrimSpace(rest)
	rest = strings.TrimPrefix(rest, "final")
	rest = strings.TrimSpace(rest)
	if !strings.HasPrefix(rest, ":") || strings.HasPrefix(rest, "::") {
		return nil
	}
	var bases []string
	for _, part := range splitTopLevel(rest[1:]) {
		fields := strings.Fields(part)
		var kept []string
		for _, f := range fields {
			switch f {
			case "public", "private", "protected", "virtual":
				continue
			}
			kept = append(kept, f)
		}
		if len(kept) > 0 {
			bases = append(bases, strings.Join(kept, " "))
		}
	}
	return bases
}

// splitTopLevel splits on commas that are not nested in angle brackets.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

func isIdentEnd(h string) bool {
	if h == "" {
		return false
	}
	c := h[len(h)-1]
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '>'
}

func lastWord(h string) string {
	fields := strings.Fields(h)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func isControlKeyword(w string) bool {
	switch w {
	case "else", "do", "try", "default", "const", "noexcept", "override", "mutable":
		return true
	}
	return false
}

// collapse folds runs of whitespace into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SplitLines splits text into lines without their terminators. A trailing
// newline does not produce an extra empty line and empty text has no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Mask returns the lines of text with comments and literal contents blanked.
func Mask(text string) []string {
	return maskLines(SplitLines(text))
}

// maskLines blanks comment bodies and the contents of string and character
// literals so that rules can pattern match on code only. Quote characters
// are kept so literals remain visible as tokens. Line lengths are preserved.
func maskLines(lines []string) []string {
	out := make([]string, len(lines))

	var (
		inBlock  bool
		rawDelim string // non-empty while inside a raw string literal
	)

	for i, line := range lines {
		b := []byte(line)
		m := make([]byte, len(b))
		j := 0
		for j < len(b) {
			c := b[j]
			var next byte
			if j+1 < len(b) {
				next = b[j+1]
			}

			switch {
			case rawDelim != "":
				if strings.HasPrefix(line[j:], rawDelim) {
					for k := 0; k < len(rawDelim)-1; k++ {
						m[j+k] = ' '
					}
					m[j+len(rawDelim)-1] = '"'
					j += len(rawDelim)
					rawDelim = ""
					continue
				}
				m[j] = ' '
				j++
			case inBlock:
				if c == '*' && next == '/' {
					m[j], m[j+1] = ' ', ' '
					j += 2
					inBlock = false
					continue
				}
				m[j] = ' '
				j++
			case c == '/' && next == '/':
				for ; j < len(b); j++ {
					m[j] = ' '
				}
			case c == '/' && next == '*':
				m[j], m[j+1] = ' ', ' '
				j += 2
				inBlock = true
			case c == '"' && isRawPrefix(b, j):
				open := strings.IndexByte(line[j+1:], '(')
				if open < 0 {
					m[j] = c
					j++
					continue
				}
				rawDelim = ")" + line[j+1:j+1+open] + `"`
				m[j] = '"'
				for k := j + 1; k <= j+1+open; k++ {
					m[k] = ' '
				}
				j += open + 2
			case c == '\'' && j > 0 && isDigit(b[j-1]) && isHexDigit(next):
				// digit separator, e.g. 1'000'000
				m[j] = c
				j++
			case c == '"' || c == '\'':
				m[j] = c
				j++
				for j < len(b) {
					if b[j] == '\\' {
						m[j] = ' '
						if j+1 < len(b) {
							m[j+1] = ' '
						}
						j += 2
						continue
					}
					if b[j] == c {
						m[j] = c
						j++
						break
					}
					m[j] = ' '
					j++
				}
			default:
				m[j] = c
				j++
			}
		}
		// an escaped trailing backslash may push j past the end
		out[i] = string(m[:len(b)])
	}
	return out
}

func isRawPrefix(b []byte, j int) bool {
	if j == 0 || b[j-1] != 'R' {
		return false
	}
	k := j - 1
	// allow encoding prefixes u8R, uR, UR, LR
	for k > 0 && (b[k-1] == 'u' || b[k-1] == 'U' || b[k-1] == 'L' || b[k-1] == '8') {
		k--
	}
	return k == 0 || !isWordByte(b[k-1])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
