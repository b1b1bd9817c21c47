package handler

/*
operationType makes a best-effort classification of the operation a
request would run, without a full parse: scan top-level definitions
for their leading keyword, honoring operationName when several are
present. Shorthand documents ({ ... }) are queries. Returns "" when
the document is too ambiguous to classify here; the engine settles it
in that case.
*/
func operationType(query, operationName string) string {
	s := &scanner{src: query}

	for {
		s.skipIgnored()
		if s.done() {
			return ""
		}

		switch {
		case s.peek() == '{':
			// Anonymous shorthand operation.
			if operationName == "" {
				return "query"
			}
			s.skipBraces()
		case isNameStart(s.peek()):
			keyword := s.readName()

			switch keyword {
			case "query", "mutation", "subscription":
				s.skipIgnored()

				name := ""
				if !s.done() && isNameStart(s.peek()) {
					name = s.readName()
				}

				if operationName == "" || name == operationName {
					return keyword
				}

				if !s.seek('{') {
					return ""
				}
				s.skipBraces()
			case "fragment":
				if !s.seek('{') {
					return ""
				}
				s.skipBraces()
			default:
				return ""
			}
		default:
			return ""
		}
	}
}

type scanner struct {
	src string
	pos int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.src)
}

func (s *scanner) peek() byte {
	return s.src[s.pos]
}

// skipIgnored advances past whitespace, commas and comments, which
// GraphQL treats as insignificant between tokens.
func (s *scanner) skipIgnored() {
	for !s.done() {
		switch s.peek() {
		case ' ', '\t', '\n', '\r', ',':
			s.pos++
		case '#':
			for !s.done() && s.peek() != '\n' {
				s.pos++
			}
		default:
			return
		}
	}
}

func (s *scanner) readName() string {
	start := s.pos
	for !s.done() && isNameChar(s.peek()) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// seek advances to the next occurrence of target outside strings and
// comments, reporting whether it was found.
func (s *scanner) seek(target byte) bool {
	for !s.done() {
		switch c := s.peek(); c {
		case target:
			return true
		case '"':
			s.skipString()
		case '#':
			s.skipIgnored()
		default:
			s.pos++
		}
	}
	return false
}

// skipBraces consumes a balanced { ... } block, tolerating string
// literals and comments inside it.
func (s *scanner) skipBraces() {
	depth := 0

	for !s.done() {
		switch s.peek() {
		case '{':
			depth++
			s.pos++
		case '}':
			depth--
			s.pos++
			if depth == 0 {
				return
			}
		case '"':
			s.skipString()
		case '#':
			s.skipIgnored()
		default:
			s.pos++
		}
	}
}

func (s *scanner) skipString() {
	// Block string?
	if s.pos+2 < len(s.src) && s.src[s.pos:s.pos+3] == `"""` {
		s.pos += 3
		for s.pos+2 < len(s.src) {
			if s.src[s.pos:s.pos+3] == `"""` {
				s.pos += 3
				return
			}
			s.pos++
		}
		s.pos = len(s.src)
		return
	}

	s.pos++ // opening quote
	for !s.done() {
		switch s.peek() {
		case '\\':
			s.pos += 2
		case '"':
			s.pos++
			return
		default:
			s.pos++
		}
	}
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}
