package admin

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Substitute replaces ${name} references in a descriptor with the given
// values. Unknown references are left untouched for the registry to resolve
// against its own variable set. Longer names are substituted first so that
// ${test.dir.extra} is never clobbered by ${test.dir}.
func Substitute(descriptor []byte, substitutions map[string]string) []byte {
	names := make([]string, 0, len(substitutions))
	for name := range substitutions {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	out := descriptor
	for _, name := range names {
		ref := []byte("${" + name + "}")
		out = bytes.ReplaceAll(out, ref, []byte(substitutions[name]))
	}
	return out
}

// ValidateXML checks that the descriptor is well-formed XML, so a malformed
// file is reported locally instead of as an opaque registry rejection.
func ValidateXML(descriptor []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(descriptor))
	for {
		_, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("malformed descriptor XML: %w", err)
		}
	}
}
