package parser

import "strings"

// Kind selects how a command line is executed.
type Kind int

const (
	KindExternal Kind = iota
	KindBuiltin
	KindPipe
	KindRedirect
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindPipe:
		return "pipe"
	case KindRedirect:
		return "redirect"
	case KindTimeout:
		return "timeout"
	default:
		return "external"
	}
}

// TimeoutKeyword is the first word of a timeout-wrapped command.
const TimeoutKeyword = "timeout"

var builtins = map[string]struct{}{
	"chprompt": {},
	"showpid":  {},
	"pwd":      {},
	"cd":       {},
	"jobs":     {},
	"kill":     {},
	"fg":       {},
	"bg":       {},
	"quit":     {},
	"head":     {},
}

// IsBuiltin reports whether name is a builtin keyword. Matching is exact.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// Command is an immutable parsed line. After a job is registered for it the
// command belongs to that job.
type Command struct {
	// Line is the trimmed original input, background marker included.
	Line string
	// Stripped is Line without the background marker.
	Stripped   string
	Args       []string
	Kind       Kind
	Background bool
}

// Parse classifies a line. ok is false for lines with no tokens.
func Parse(line string) (cmd *Command, ok bool) {
	trimmed := Trim(line)
	stripped := StripBackground(trimmed)
	args := Tokenize(stripped)
	if len(args) == 0 {
		return nil, false
	}
	c := &Command{
		Line:       trimmed,
		Stripped:   stripped,
		Args:       args,
		Background: IsBackground(trimmed),
	}
	c.Kind = classify(stripped, c.Name())
	return c, true
}

func classify(stripped, name string) Kind {
	switch {
	case strings.Contains(stripped, ">"):
		return KindRedirect
	case strings.Contains(stripped, "|"):
		return KindPipe
	case name == TimeoutKeyword:
		return KindTimeout
	case IsBuiltin(name):
		return KindBuiltin
	default:
		return KindExternal
	}
}

// Name is the first word with any trailing '&' removed.
func (c *Command) Name() string {
	if len(c.Args) == 0 {
		return ""
	}
	return strings.TrimRight(c.Args[0], "&")
}

// Pipe splits the line at the first '|'. stderr is set for "|&". A background
// marker on the whole line moves to the right side.
func (c *Command) Pipe() (left, right string, stderr bool) {
	s := c.Stripped
	i := strings.IndexByte(s, '|')
	if i < 0 {
		return s, "", false
	}
	left = s[:i]
	rest := s[i+1:]
	if strings.HasPrefix(rest, "&") {
		stderr = true
		rest = rest[1:]
	}
	right = rest
	if c.Background {
		right += " &"
	}
	return left, right, stderr
}

// Redirect splits the line at the first '>'. The target is whatever follows
// the last '>', and append mode is selected by any ">>". A background marker on
// the whole line moves to the left side.
func (c *Command) Redirect() (left, target string, appendMode bool) {
	s := c.Stripped
	first := strings.IndexByte(s, '>')
	if first < 0 {
		return s, "", false
	}
	last := strings.LastIndexByte(s, '>')
	left = s[:first]
	target = Trim(s[last+1:])
	appendMode = strings.Contains(s, ">>")
	if c.Background {
		left += " &"
	}
	return left, target, appendMode
}
