package expr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScanRefs(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "plain identifiers",
			in:   "height * 2 + offset",
			want: []string{"height", "offset"},
		},
		{
			name: "string literals ignored",
			in:   "status == 'height'",
			want: []string{"status"},
		},
		{
			name: "keywords ignored",
			in:   "ready == true && flag != null",
			want: []string{"ready", "flag"},
		},
		{
			name: "function calls ignored",
			in:   "round(weight) > limit",
			want: []string{"weight", "limit"},
		},
		{
			name: "dotted path keeps root",
			in:   "address.city != ''",
			want: []string{"address"},
		},
		{
			name: "duplicates collapse",
			in:   "a + a + b",
			want: []string{"a", "b"},
		},
		{
			name: "empty",
			in:   "",
			want: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ScanRefs(tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("refs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
