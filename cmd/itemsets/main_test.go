package main

import "testing"

func TestParseDays(t *testing.T) {
	tests := []struct {
		arg     string
		want    int
		wantErr bool
	}{
		{"1", 1, false},
		{"14", 14, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"three", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := parseDays(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDays(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseDays(%q) = %d, want %d", tt.arg, got, tt.want)
			}
		})
	}
}

func TestCommandTree(t *testing.T) {
	want := map[string]bool{"generate": false, "ingest": false, "load-cache": false, "analyze": false, "install": false}
	for _, cmd := range []interface{ Name() string }{generateCmd(), ingestCmd(), loadCacheCmd(), analyzeCmd(), installCmd()} {
		if _, ok := want[cmd.Name()]; !ok {
			t.Errorf("unexpected command %q", cmd.Name())
		}
		want[cmd.Name()] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q missing", name)
		}
	}

	gen := generateCmd()
	for _, flag := range []string{"recreate", "offline", "output-dir", "workers", "no-tree", "install", "league-dir"} {
		if gen.Flags().Lookup(flag) == nil {
			t.Errorf("generate is missing --%s", flag)
		}
	}
	if got := gen.Flags().Lookup("output-dir").DefValue; got != "target" {
		t.Errorf("--output-dir default = %q, want target", got)
	}
}
