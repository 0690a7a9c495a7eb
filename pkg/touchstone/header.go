package touchstone

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// headerLexer tokenizes the non-numeric header lines of a Touchstone file:
// the "#" option line and the "! Port[n] = name" annotations.
var headerLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t]+`},
	{Name: "Hash", Pattern: `#`},
	{Name: "Bang", Pattern: `!`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
	{Name: "Equals", Pattern: `=`},
	{Name: "Number", Pattern: `[-+]?[0-9]+(\.[0-9]*)?([eE][-+]?[0-9]+)?`},
	// Port names from layout exports carry nets, angle brackets, and
	// separators (e.g. "3_U43_DDR_DQS0_P").
	{Name: "Name", Pattern: `[A-Za-z_][A-Za-z0-9_<>./;-]*`},
})

// optionLine models "# <unit> <type> <format> R <ref>". Touchstone makes
// every field optional with fixed defaults.
type optionLine struct {
	Fields []optionField `parser:"Hash @@*"`
}

type optionField struct {
	Word   *string  `parser:"  @Name"`
	Number *float64 `parser:"| @Number"`
}

// portComment models "! Port[n] = name". Names from layout exports may
// start with an ordinal prefix, which lexes as a leading Number token.
type portComment struct {
	Index int    `parser:"Bang \"Port\" LBracket @Number RBracket Equals"`
	Name  string `parser:"@(Name | Number)+"`
}

var (
	optionParser = participle.MustBuild[optionLine](
		participle.Lexer(headerLexer),
		participle.Elide("Whitespace"),
	)
	portParser = participle.MustBuild[portComment](
		participle.Lexer(headerLexer),
		participle.Elide("Whitespace"),
	)
)

// options is the decoded option line with defaults applied.
type options struct {
	FreqScale float64 // multiplier to Hz
	Format    string  // RI, MA or DB
	RefOhms   float64
}

func defaultOptions() options {
	return options{FreqScale: 1e9, Format: "MA", RefOhms: 50}
}

var freqScales = map[string]float64{
	"HZ":  1,
	"KHZ": 1e3,
	"MHZ": 1e6,
	"GHZ": 1e9,
}

// parseOptionLine decodes a "#" option line. Fields may appear in any
// order; "R" must be followed by the reference resistance.
func parseOptionLine(line string) (options, error) {
	opts := defaultOptions()
	parsed, err := optionParser.ParseString("", line)
	if err != nil {
		return opts, fmt.Errorf("touchstone: bad option line %q: %w", line, err)
	}
	expectRef := false
	for _, field := range parsed.Fields {
		if field.Number != nil {
			if !expectRef {
				return opts, fmt.Errorf("touchstone: stray number %g in option line", *field.Number)
			}
			opts.RefOhms = *field.Number
			expectRef = false
			continue
		}
		word := strings.ToUpper(*field.Word)
		switch {
		case word == "R":
			expectRef = true
		case word == "S":
			// scattering parameters, the only type supported
		case word == "Y" || word == "Z" || word == "G" || word == "H":
			return opts, fmt.Errorf("touchstone: %s-parameters not supported", word)
		case word == "RI" || word == "MA" || word == "DB":
			opts.Format = word
		default:
			scale, ok := freqScales[word]
			if !ok {
				return opts, fmt.Errorf("touchstone: unknown option token %q", *field.Word)
			}
			opts.FreqScale = scale
		}
	}
	if expectRef {
		return opts, fmt.Errorf("touchstone: option line R without value")
	}
	return opts, nil
}

// parsePortComment decodes a "! Port[n] = name" annotation. The boolean
// reports whether the comment was a port annotation at all.
func parsePortComment(line string) (int, string, bool) {
	pc, err := portParser.ParseString("", line)
	if err != nil {
		return 0, "", false
	}
	return pc.Index, pc.Name, true
}
