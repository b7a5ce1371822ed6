package graphs

import "fmt"

// ValidateIdentifier reports whether s can be spliced into a query as a label
// or relationship type. Accepted: [A-Za-z_][A-Za-z0-9_]*.
func ValidateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case isLetter(c), c == '_':
		case i > 0 && c >= '0' && c <= '9':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
		}
	}
	return nil
}

// ValidateIdentifiers validates every identifier in ids.
func ValidateIdentifiers(ids ...string) error {
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			return err
		}
	}
	return nil
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
