package domain

import (
	"testing"

	"github.com/google/uuid"
)

// FuzzParseScanID checks that parsing never panics and never returns both a
// usable ID and an error.
func FuzzParseScanID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseScanID(input)
		if err != nil {
			if !id.IsNil() {
				t.Fatalf("error returned with non-nil id %s", id)
			}
			return
		}
		if id.IsNil() {
			t.Fatal("nil id accepted")
		}
		if _, perr := uuid.Parse(id.String()); perr != nil {
			t.Fatalf("accepted id does not round-trip: %v", perr)
		}
	})
}
