package filter

// Styles used by the builtin filters.
const (
	StyleError    = "output-error"
	StyleWarning  = "output-warning"
	StyleLocation = "output-location"
)

// gcc-style diagnostics: file:line[:col]: severity: message
var gccRules = []RuleDef{
	{
		Pattern: `^(?<file>[^:\s][^:]*):(?<line>\d+):(?:(?<character>\d+):)?\s*(?:fatal )?error\b.*$`,
		Style:   StyleError,
	},
	{
		Pattern: `^(?<file>[^:\s][^:]*):(?<line>\d+):(?:(?<character>\d+):)?\s*warning\b.*$`,
		Style:   StyleWarning,
	},
	{
		Pattern: `^(?<file>[^:\s][^:]*):(?<line>\d+):(?:(?<character>\d+):)?`,
		Style:   StyleLocation,
	},
}

// GNU make prints the directories it recurses into.
var makeDirRules = []RuleDef{
	{
		Pattern: `^\S*make(?:\[\d+\])?: Entering directory [\x60'‘](?<dir>.*)['’]$`,
		Output:  "stdout",
		Actions: []ActionDef{{Type: "push", Target: "directory", Name: "dir"}},
	},
	{
		Pattern: `^\S*make(?:\[\d+\])?: Leaving directory [\x60'‘](?<dir>.*)['’]$`,
		Output:  "stdout",
		Actions: []ActionDef{{Type: "pop", Target: "directory"}},
	},
	{
		Pattern: `^\S*make(?:\[\d+\])?: \*\*\*.*$`,
		Style:   StyleError,
	},
}

// Builtins returns the filters that are always registered. Filter files
// may replace them by id.
func Builtins() []Definition {
	return []Definition{
		{
			ID:    DefaultID,
			Name:  "Default",
			Rules: gccRules,
		},
		{
			ID:    "gcc",
			Name:  "GCC",
			Rules: gccRules,
		},
		{
			ID:    "make",
			Name:  "Make",
			Rules: concatRules(makeDirRules, gccRules),
		},
		{
			ID:   "go",
			Name: "Go",
			Rules: []RuleDef{
				{
					Pattern: `^\s*(?<file>[^\s:]+\.go):(?<line>\d+)(?::(?<character>\d+))?:.*$`,
					Style:   StyleError,
				},
				{
					Pattern: `^\s*(?<file>[^\s:]+\.go):(?<line>\d+)\s+\+0x[0-9a-f]+$`,
					Style:   StyleLocation,
				},
				{
					Pattern: `^(?:--- FAIL: |FAIL\s|panic: ).*$`,
					Style:   StyleError,
				},
			},
		},
		{
			ID:   "python",
			Name: "Python",
			Rules: []RuleDef{
				{
					// The frame line is followed by the source line.
					Pattern: `^\s*File "(?<file>[^"]+)", line (?<line>\d+).*$`,
					Style:   StyleError,
					Span:    2,
				},
				{
					Pattern: `^(?:\w+\.)*\w*(?:Error|Exception|Interrupt|Exit)(?::.*)?$`,
					Style:   StyleError,
				},
			},
		},
		{
			ID:   "tsc",
			Name: "TypeScript",
			Rules: []RuleDef{
				{
					Pattern: `^(?<file>[^\s(][^(]*)\((?<line>\d+),(?<character>\d+)\): error .*$`,
					Style:   StyleError,
				},
				{
					Pattern: `^(?<file>[^\s(][^(]*)\((?<line>\d+),(?<character>\d+)\): warning .*$`,
					Style:   StyleWarning,
				},
			},
		},
		{
			ID:   "rustc",
			Name: "Rust",
			Rules: []RuleDef{
				{
					Pattern: `^error(?:\[\w+\])?: .*$`,
					Style:   StyleError,
				},
				{
					Pattern: `^warning(?:\[\w+\])?: .*$`,
					Style:   StyleWarning,
				},
				{
					Pattern: `^\s*--> (?<file>[^:]+):(?<line>\d+):(?<character>\d+)$`,
					Style:   StyleLocation,
				},
			},
		},
		{
			ID:   "eslint-stylish",
			Name: "ESLint (stylish)",
			Rules: []RuleDef{
				{
					// A file header opens the block of its problems.
					Pattern: `^(?<file>(?:/|\./|[A-Za-z]:\\)\S.*)$`,
					Output:  "stdout",
					Actions: []ActionDef{{Type: "push", Target: "file", Name: "file"}},
				},
				{
					Pattern: `^\s+(?<line>\d+):(?<character>\d+)\s+error\s.*$`,
					Style:   StyleError,
				},
				{
					Pattern: `^\s+(?<line>\d+):(?<character>\d+)\s+warning\s.*$`,
					Style:   StyleWarning,
				},
			},
		},
	}
}

func concatRules(parts ...[]RuleDef) []RuleDef {
	var out []RuleDef
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
