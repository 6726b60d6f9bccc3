package council

import (
	"strconv"
	"strings"
	"unicode"
)

// Directive is one parsed tool invocation request embedded in model text.
// Args holds string and int values in declaration order.
type Directive struct {
	Raw  string
	Tool string
	Args []any
}

// ParseDirective parses a single line as a tool directive. The accepted
// shape is
//
//	TOOL: tool_name("string arg", 42)
//
// with optional surrounding whitespace and optional trailing punctuation
// after the closing parenthesis. String arguments are double-quoted and
// carry no escape sequences; numeric arguments are unsigned integers.
// Anything else is plain text, not a directive.
func ParseDirective(line string) (Directive, bool) {
	s := strings.TrimSpace(line)
	const marker = "TOOL:"
	if !strings.HasPrefix(s, marker) {
		return Directive{}, false
	}
	rest := strings.TrimLeft(s[len(marker):], " \t")

	name, rest, ok := scanIdent(rest)
	if !ok {
		return Directive{}, false
	}
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, "(") {
		return Directive{}, false
	}
	rest = rest[1:]

	var args []any
	rest = strings.TrimLeft(rest, " \t")
	if !strings.HasPrefix(rest, ")") {
		for {
			var arg any
			arg, rest, ok = scanArg(rest)
			if !ok {
				return Directive{}, false
			}
			args = append(args, arg)
			rest = strings.TrimLeft(rest, " \t")
			if strings.HasPrefix(rest, ",") {
				rest = strings.TrimLeft(rest[1:], " \t")
				continue
			}
			break
		}
	}
	if !strings.HasPrefix(rest, ")") {
		return Directive{}, false
	}
	rest = rest[1:]

	// Trailing punctuation after the call is tolerated; any other
	// trailing content makes the line plain text.
	for _, r := range rest {
		if unicode.IsSpace(r) || strings.ContainsRune(".,;:!", r) {
			continue
		}
		return Directive{}, false
	}

	return Directive{Raw: s, Tool: name, Args: args}, true
}

// FindDirective scans a buffer of streamed text and returns the first
// complete directive line. It is a pure function: feeding the same buffer
// again yields the same answer. A line is complete once its closing
// parenthesis has arrived; a still-growing line that does not yet parse is
// simply not found, letting the caller keep accumulating.
func FindDirective(buf string) (Directive, bool) {
	for {
		line := buf
		rest := ""
		if i := strings.IndexByte(buf, '\n'); i >= 0 {
			line, rest = buf[:i], buf[i+1:]
		}
		if d, ok := ParseDirective(line); ok {
			return d, true
		}
		if rest == "" {
			return Directive{}, false
		}
		buf = rest
	}
}

func scanIdent(s string) (ident, rest string, ok bool) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || i > 0 && c >= '0' && c <= '9' {
			i++
			continue
		}
		break
	}
	if i == 0 {
		return "", s, false
	}
	return s[:i], s[i:], true
}

func scanArg(s string) (arg any, rest string, ok bool) {
	if strings.HasPrefix(s, `"`) {
		end := strings.IndexByte(s[1:], '"')
		if end < 0 {
			return nil, s, false
		}
		return s[1 : 1+end], s[end+2:], true
	}
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return nil, s, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return nil, s, false
	}
	return n, s[i:], true
}
