package utils

import "testing"

func TestPageParam(t *testing.T) {
	cases := []struct {
		name    string
		s       string
		def     int
		want    int
		wantErr bool
	}{
		{"empty uses default", "", 10, 10, false},
		{"valid number", "42", 10, 42, false},
		{"zero", "0", 10, 0, false},
		{"negative", "-3", 10, -3, false},
		{"not a number", "abc", 10, 0, true},
		{"trailing garbage", "12x", 10, 0, true},
		{"float", "1.5", 10, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PageParam(tc.s, tc.def)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("PageParam(%q, %d): expected error, got %d", tc.s, tc.def, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("PageParam(%q, %d): unexpected error %v", tc.s, tc.def, err)
			}
			if got != tc.want {
				t.Fatalf("PageParam(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
			}
		})
	}
}
