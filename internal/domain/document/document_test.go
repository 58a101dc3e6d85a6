package document

import "testing"

func TestDocument_IsBlank(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"", true},
		{" \n\t ", true},
		{"Paris", false},
		{"\n\nx", false},
	}
	for _, tt := range tests {
		if got := (Document{Content: tt.content}).IsBlank(); got != tt.want {
			t.Errorf("IsBlank(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}
