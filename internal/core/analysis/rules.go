package analysis

import (
	"regexp"
	"strconv"
	"strings"
)

// Rule IDs of the built-in rules.
const (
	RuleRawIndexLoop           = "raw-index-loop"
	RuleMissingVirtualDtor     = "missing-virtual-dtor"
	RuleOwningRawPointer       = "owning-raw-pointer"
	RuleMagicNumber            = "magic-number"
	RuleUnguardedSharedState   = "unguarded-shared-state"
	RuleCStyleArray            = "c-style-array"
	RuleFloatEquality          = "float-equality"
	RuleUninitializedPrimitive = "uninitialized-primitive"
	RuleSqrtInLoop             = "sqrt-in-loop"
	RuleStringInHotPath        = "string-in-hot-path"
	RuleUncheckedDereference   = "unchecked-dereference"
)

// Builtin returns the built-in rules in their registration order.
func Builtin() []Rule {
	return []Rule{
		rawIndexLoop{},
		missingVirtualDtor{},
		owningRawPointer{},
		magicNumber{},
		unguardedSharedState{},
		cStyleArray{},
		floatEquality{},
		uninitializedPrimitive{},
		sqrtInLoop{},
		stringInHotPath{},
		uncheckedDereference{},
	}
}

// rawIndexLoop flags `for (int i = 0; i < c.size(); i++)` style iteration.
type rawIndexLoop struct{}

var reIndexLoop = regexp.MustCompile(`\bfor\s*\(\s*(?:[\w:]+\s+)*([A-Za-z_]\w*)\s*=\s*0[uUlL]*\s*;\s*([A-Za-z_]\w*)\s*<=?\s*([A-Za-z_][\w.:\[\]>-]*?)\s*(?:\.|->)\s*(?:size|length)\s*\(\s*\)`)

func (rawIndexLoop) Definition() Definition {
	return Definition{
		ID:       RuleRawIndexLoop,
		Category: CategoryModern,
		Severity: SeverityWarning,
		Message:  "index-based loop over `{{ .container }}`; prefer a range-based for loop: for (auto& element : {{ .container }})",
	}
}

func (rawIndexLoop) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		m := reIndexLoop.FindStringSubmatch(l.Code)
		if m == nil || m[1] != m[2] {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"container": m[3], "index": m[1]},
		})
	}
	return out
}

// missingVirtualDtor flags root classes that declare virtual members but
// whose destructor is not virtual.
type missingVirtualDtor struct{}

var (
	reVirtual     = regexp.MustCompile(`\bvirtual\b`)
	reAccessLabel = regexp.MustCompile(`^\s*(public|protected|private)\s*:`)
)

func (missingVirtualDtor) Definition() Definition {
	return Definition{
		ID:       RuleMissingVirtualDtor,
		Category: CategoryDesign,
		Severity: SeverityError,
		Message:  "polymorphic base `{{ .name }}` {{ .detail }}; declare `virtual ~{{ .name }}()`",
	}
}

func (missingVirtualDtor) Check(v *View) []Match {
	var out []Match
	for idx, s := range v.Scopes {
		if s.Kind != ScopeType || len(s.Bases) > 0 || strings.Contains(s.Header, " final") || strings.HasPrefix(s.Header, "union") {
			continue
		}

		access := "private"
		if strings.Contains(s.Header, "struct ") {
			access = "public"
		}

		reDtor := regexp.MustCompile(`~\s*` + regexp.QuoteMeta(s.Name) + `\s*\(`)

		var (
			hasVirtual    bool
			hasDtor       bool
			dtorVirtual   bool
			dtorProtected bool
		)
		for _, l := range v.Members(idx) {
			if m := reAccessLabel.FindStringSubmatch(l.Code); m != nil {
				access = m[1]
			}
			if reDtor.MatchString(l.Code) {
				hasDtor = true
				dtorVirtual = reVirtual.MatchString(l.Code)
				dtorProtected = access == "protected"
				continue
			}
			if reVirtual.MatchString(l.Code) {
				hasVirtual = true
			}
		}

		if !hasVirtual || dtorVirtual || dtorProtected {
			continue
		}

		detail := "has no user-declared destructor"
		if hasDtor {
			detail = "declares a non-virtual destructor"
		}
		out = append(out, Match{
			LineStart: s.HeaderLine,
			LineEnd:   s.CloseLine,
			Vars:      map[string]string{"name": s.Name, "detail": detail},
		})
	}
	return out
}

// owningRawPointer flags `new` expressions not handed to a smart pointer and
// raw pointer members that the class deletes itself.
type owningRawPointer struct{}

var (
	reNewExpr     = regexp.MustCompile(`\bnew\s+([A-Za-z_][\w:]*)`)
	reSmartPtr    = regexp.MustCompile(`unique_ptr|shared_ptr|weak_ptr|make_unique|make_shared|\.reset\s*\(`)
	rePointerDecl = regexp.MustCompile(`^\s*(?:[\w:<>]+\s+)*[\w:<>]+\s*\*\s*([A-Za-z_]\w*)\s*(?:=\s*(?:nullptr|NULL|0)\s*)?;`)
)

func (owningRawPointer) Definition() Definition {
	return Definition{
		ID:       RuleOwningRawPointer,
		Category: CategoryMemory,
		Severity: SeverityWarning,
		Message:  "{{ .what }}; prefer std::unique_ptr or std::shared_ptr for automatic lifetime management",
	}
}

func (owningRawPointer) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		m := reNewExpr.FindStringSubmatch(l.Code)
		if m == nil || reSmartPtr.MatchString(l.Code) {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"what": "`new " + m[1] + "` creates an owning raw pointer"},
		})
	}

	for idx, s := range v.Scopes {
		if s.Kind != ScopeType {
			continue
		}
		for _, l := range v.Members(idx) {
			m := rePointerDecl.FindStringSubmatch(l.Code)
			if m == nil || strings.Contains(l.Code, "(") || strings.Contains(l.Code, "const") {
				continue
			}
			reDelete := regexp.MustCompile(`\bdelete\s*(?:\[\s*\]\s*)?(?:this\s*->\s*)?` + regexp.QuoteMeta(m[1]) + `\b`)
			if !v.matchesAny(reDelete) {
				continue
			}
			out = append(out, Match{
				LineStart: l.Num,
				LineEnd:   l.Num,
				Vars:      map[string]string{"what": "member `" + m[1] + "` owns memory through a raw pointer"},
			})
		}
	}
	return out
}

// magicNumber flags unnamed numeric literals inside function bodies.
type magicNumber struct{}

var (
	reNumber       = regexp.MustCompile(`(?:^|[^\w.])((?:\d+\.\d*|\.\d+|\d+)(?:[eE][+-]?\d+)?[fFlLuU]*)`)
	reNamedConst   = regexp.MustCompile(`\b(?:const|constexpr|consteval|enum|static_assert)\b`)
	reNumberSuffix = regexp.MustCompile(`[fFlLuU]+$`)
)

func (magicNumber) Definition() Definition {
	return Definition{
		ID:       RuleMagicNumber,
		Category: CategoryStyle,
		Severity: SeverityInfo,
		Message:  "magic number {{ .literals }}; extract a named constant",
	}
}

func (magicNumber) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		if !v.InFunction(l) || reNamedConst.MatchString(l.Code) || strings.HasPrefix(strings.TrimSpace(l.Code), "#") {
			continue
		}

		var literals []string
		for _, m := range reNumber.FindAllStringSubmatch(l.Code, -1) {
			if isTrivialNumber(m[1]) {
				continue
			}
			literals = append(literals, m[1])
		}
		if len(literals) == 0 {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"literals": strings.Join(literals, ", ")},
		})
	}
	return out
}

func isTrivialNumber(lit string) bool {
	f, err := strconv.ParseFloat(reNumberSuffix.ReplaceAllString(lit, ""), 64)
	if err != nil {
		return true
	}
	if strings.ContainsAny(lit, ".eE") {
		return f == 0 || f == 1
	}
	return f <= 2
}

// unguardedSharedState flags writes to static or namespace-level mutable
// variables when the snippet shows no synchronization primitive at all.
type unguardedSharedState struct{}

var (
	reStaticDecl = regexp.MustCompile(`^\s*(?:inline\s+)?static\s+([\w:<>,\s\*&]+?)\s*\**\s*([A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?:=[^;]*|\{[^;]*\})?;`)
	reGlobalDecl = regexp.MustCompile(`^\s*(?:extern\s+)?([\w:<>,]+(?:\s*[\*&])?)\s+\**([A-Za-z_]\w*)\s*(?:\[[^\]]*\])?\s*(?:=[^;]*|\{[^;]*\})?;\s*$`)
	reSyncGuard  = regexp.MustCompile(`\b(?:mutex|shared_mutex|recursive_mutex|lock_guard|unique_lock|scoped_lock|shared_lock|atomic|atomic_flag|pthread_mutex_\w+|thread_local)\b`)
	notSharedKW  = map[string]bool{
		"return": true, "using": true, "typedef": true, "namespace": true, "class": true,
		"struct": true, "enum": true, "friend": true, "template": true, "delete": true,
		"goto": true, "throw": true, "case": true, "break": true, "continue": true,
	}
)

type sharedVar struct {
	name string
	line int
}

func (unguardedSharedState) Definition() Definition {
	return Definition{
		ID:       RuleUnguardedSharedState,
		Category: CategoryConcurrency,
		Severity: SeverityWarning,
		Message:  "shared mutable `{{ .name }}` (declared on line {{ .decl }}) is modified without visible synchronization; guard it with a mutex or make it std::atomic",
	}
}

func (unguardedSharedState) Check(v *View) []Match {
	if v.matchesAny(reSyncGuard) {
		return nil
	}

	var shared []sharedVar
	for _, l := range v.Lines {
		if strings.Contains(l.Code, "(") || reNamedConst.MatchString(l.Code) {
			continue
		}
		if m := reStaticDecl.FindStringSubmatch(l.Code); m != nil {
			shared = append(shared, sharedVar{name: m[2], line: l.Num})
			continue
		}
		if !v.AtDeclarationLevel(l) {
			continue
		}
		if m := reGlobalDecl.FindStringSubmatch(l.Code); m != nil && !notSharedKW[strings.TrimSpace(m[1])] {
			shared = append(shared, sharedVar{name: m[2], line: l.Num})
		}
	}

	var out []Match
	for _, sv := range shared {
		name := regexp.QuoteMeta(sv.name)
		reWrite := regexp.MustCompile(
			`(?:^|[^\w.>])` + name + `\s*(?:\[[^\]]*\]\s*)?(?:[-+*/%&|^]|<<|>>)?=[^=]` +
				`|(?:^|[^\w.>])` + name + `\s*(?:\+\+|--)` +
				`|(?:\+\+|--)\s*` + name + `\b` +
				`|(?:^|[^\w.>])` + name + `\s*(?:\.|->)\s*(?:push_back|emplace_back|emplace|insert|erase|clear|push|pop|pop_back|resize|assign|swap)\s*\(`)
		for _, l := range v.Lines {
			if l.Num == sv.line || !v.InFunction(l) {
				continue
			}
			if reWrite.MatchString(l.Code) {
				out = append(out, Match{
					LineStart: l.Num,
					LineEnd:   l.Num,
					Vars:      map[string]string{"name": sv.name, "decl": strconv.Itoa(sv.line)},
				})
				break
			}
		}
	}
	return out
}

// cStyleArray flags fixed-size C arrays other than character buffers.
type cStyleArray struct{}

var (
	reCArray      = regexp.MustCompile(`\b([A-Za-z_][\w:]*)\s+\**([A-Za-z_]\w*)\s*\[\s*(\w*)\s*\]`)
	notArrayTypes = map[string]bool{
		"return": true, "delete": true, "new": true, "sizeof": true, "case": true, "else": true,
		"throw": true, "co_return": true, "goto": true, "char": true, "wchar_t": true,
		"char8_t": true, "char16_t": true, "char32_t": true, "operator": true, "using": true,
	}
)

func (cStyleArray) Definition() Definition {
	return Definition{
		ID:       RuleCStyleArray,
		Category: CategoryModern,
		Severity: SeverityInfo,
		Message:  "C-style array `{{ .name }}`; prefer std::array for fixed sizes or std::vector for dynamic ones",
	}
}

func (cStyleArray) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		m := reCArray.FindStringSubmatch(l.Code)
		if m == nil || notArrayTypes[m[1]] || notArrayTypes[m[2]] || strings.HasPrefix(strings.TrimSpace(l.Code), "#") {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"name": m[2]},
		})
	}
	return out
}

// floatEquality flags == and != against floating point literals.
type floatEquality struct{}

var reFloatEq = regexp.MustCompile(`(?:==|!=)\s*[-+]?(?:\d+\.\d*|\.\d+)(?:[eE][+-]?\d+)?[fF]?|(?:\d+\.\d*|\.\d+)(?:[eE][+-]?\d+)?[fF]?\s*(?:==|!=)`)

func (floatEquality) Definition() Definition {
	return Definition{
		ID:       RuleFloatEquality,
		Category: CategoryBugs,
		Severity: SeverityWarning,
		Message:  "direct floating-point comparison `{{ .expr }}`; compare against an epsilon instead",
	}
}

func (floatEquality) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		m := reFloatEq.FindString(l.Code)
		if m == "" {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"expr": strings.TrimSpace(m)},
		})
	}
	return out
}

// uninitializedPrimitive flags local primitive declarations without an initializer.
type uninitializedPrimitive struct{}

var reUninitPrimitive = regexp.MustCompile(`^\s*(?:(?:unsigned|signed|long|short|volatile)\s+)*(?:int|float|double|bool|char|long|short|unsigned|size_t|std::size_t|u?int\d+_t|std::u?int\d+_t)\s+([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)\s*;`)

func (uninitializedPrimitive) Definition() Definition {
	return Definition{
		ID:       RuleUninitializedPrimitive,
		Category: CategoryBugs,
		Severity: SeverityWarning,
		Message:  "primitive `{{ .names }}` declared without an initializer; initialize it at declaration",
	}
}

func (uninitializedPrimitive) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		if !v.InFunction(l) {
			continue
		}
		m := reUninitPrimitive.FindStringSubmatch(l.Code)
		if m == nil {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"names": collapse(m[1])},
		})
	}
	return out
}

// sqrtInLoop flags square roots computed inside loops.
type sqrtInLoop struct{}

var (
	reSqrt       = regexp.MustCompile(`\b(?:std::)?sqrt[fl]?\s*\(`)
	reLoopHeadOn = regexp.MustCompile(`\b(?:for|while)\s*\(`)
)

func (sqrtInLoop) Definition() Definition {
	return Definition{
		ID:       RuleSqrtInLoop,
		Category: CategoryPerformance,
		Severity: SeverityInfo,
		Message:  "sqrt computed inside a loop; compare squared magnitudes where only ordering matters",
	}
}

func (sqrtInLoop) Check(v *View) []Match {
	var out []Match
	for i, l := range v.Lines {
		if !reSqrt.MatchString(l.Code) {
			continue
		}
		if v.InLoop(l) || reLoopHeadOn.MatchString(l.Code) || bracelessLoopBody(v, i) {
			out = append(out, Match{LineStart: l.Num, LineEnd: l.Num, Vars: map[string]string{}})
		}
	}
	return out
}

// bracelessLoopBody reports whether the previous code line is a loop header
// without an opening brace.
func bracelessLoopBody(v *View, i int) bool {
	for j := i - 1; j >= 0; j-- {
		code := strings.TrimSpace(v.Lines[j].Code)
		if code == "" {
			continue
		}
		return reLoopHeadOn.MatchString(code) && strings.HasSuffix(code, ")")
	}
	return false
}

// stringInHotPath flags string building inside per-frame functions such as
// update and render.
type stringInHotPath struct{}

var (
	reHotFunction = regexp.MustCompile(`(?i)(?:^|[\s:*&~])((?:on)?(?:update|render|tick|draw)\w*)\s*\(`)
	reStringOp    = regexp.MustCompile(`\bstd::(?:string|to_string|ostringstream|stringstream)\b|\+=?\s*"|"\s*\+`)
)

func (stringInHotPath) Definition() Definition {
	return Definition{
		ID:       RuleStringInHotPath,
		Category: CategoryPerformance,
		Severity: SeverityInfo,
		Message:  "string operation in per-frame function `{{ .function }}`; build strings outside update/render paths",
	}
}

func (stringInHotPath) Check(v *View) []Match {
	var out []Match
	for _, l := range v.Lines {
		fn, ok := v.function(l)
		if !ok || !reStringOp.MatchString(l.Code) {
			continue
		}
		m := reHotFunction.FindStringSubmatch(fn.Header)
		if m == nil {
			continue
		}
		out = append(out, Match{
			LineStart: l.Num,
			LineEnd:   l.Num,
			Vars:      map[string]string{"function": m[1]},
		})
	}
	return out
}

// uncheckedDereference flags the first `p->` use of a pointer in a function
// when no earlier line of that function tests it against null.
type uncheckedDereference struct{}

var reArrow = regexp.MustCompile(`\b([A-Za-z_]\w*)\s*->`)

func (uncheckedDereference) Definition() Definition {
	return Definition{
		ID:       RuleUncheckedDereference,
		Category: CategoryBugs,
		Severity: SeverityWarning,
		Message:  "`{{ .pointer }}` is dereferenced without a null check; test it before use or pass a reference",
	}
}

func (uncheckedDereference) Check(v *View) []Match {
	type key struct {
		scope int
		name  string
	}
	reported := make(map[key]bool)

	var out []Match
	for _, l := range v.Lines {
		fn, ok := v.functionIndex(l)
		if !ok {
			continue
		}
		for _, m := range reArrow.FindAllStringSubmatch(l.Code, -1) {
			name := m[1]
			if name == "this" || name == "it" || strings.HasSuffix(name, "_it") || strings.HasSuffix(name, "Iter") {
				continue
			}
			k := key{fn, name}
			if reported[k] || v.nullChecked(fn, l.Num, name) {
				continue
			}
			reported[k] = true
			out = append(out, Match{
				LineStart: l.Num,
				LineEnd:   l.Num,
				Vars:      map[string]string{"pointer": name},
			})
		}
	}
	return out
}

// nullChecked reports whether a line of function scope fn, up to and
// including line num, tests name against null.
func (v *View) nullChecked(fn, num int, name string) bool {
	n := regexp.QuoteMeta(name)
	reCheck := regexp.MustCompile(
		`\b(?:if|while|assert)\s*\(\s*!?\s*` + n + `\s*[)&|]` +
			`|\b` + n + `\s*[!=]=\s*(?:nullptr|NULL|0)\b` +
			`|\b(?:nullptr|NULL)\s*[!=]=\s*` + n + `\b` +
			`|\b` + n + `\s*(?:&&|\?)`)

	start := v.Scopes[fn].HeaderLine
	for i := max(start, 1); i <= num && i <= len(v.Lines); i++ {
		if reCheck.MatchString(v.Lines[i-1].Code) {
			return true
		}
	}
	return false
}

// functionIndex returns the index of the function scope enclosing l.
func (v *View) functionIndex(l Line) (int, bool) {
	for idx := l.Scope; idx >= 0; idx = v.Scopes[idx].Parent {
		switch v.Scopes[idx].Kind {
		case ScopeFunction:
			return idx, true
		case ScopeType, ScopeNamespace:
			return -1, false
		}
	}
	return -1, false
}

// function returns the function scope enclosing l.
func (v *View) function(l Line) (Scope, bool) {
	idx, ok := v.functionIndex(l)
	if !ok {
		return Scope{}, false
	}
	return v.Scopes[idx], true
}

// matchesAny reports whether re matches any masked code line.
func (v *View) matchesAny(re *regexp.Regexp) bool {
	for _, l := range v.Lines {
		if re.MatchString(l.Code) {
			return true
		}
	}
	return false
}
