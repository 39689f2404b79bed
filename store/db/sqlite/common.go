package sqlite

import (
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
)

// protojsonUnmarshaler reads stored preference documents. Unknown fields are
// dropped so older rows keep loading after the document shape changes.
var protojsonUnmarshaler = protojson.UnmarshalOptions{DiscardUnknown: true}

// placeholder is the bind parameter for the n-th argument. SQLite binds by
// position, so n is ignored.
func placeholder(int) string {
	return "?"
}

// placeholders returns a comma separated list of n bind parameters for an
// INSERT ... VALUES clause.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
