package answer

import "testing"

func TestGenerated(t *testing.T) {
	a := Generated("Paris.", "What is the capital of France?", nil)
	if a.Outcome != Answered || a.Text != "Paris." {
		t.Errorf("got %+v", a)
	}
}

func TestGenerated_BlankBecomesNoAnswer(t *testing.T) {
	for _, text := range []string{"", "  \n\t"} {
		a := Generated(text, "q", nil)
		if a.Outcome != NoAnswer || a.Text != NoAnswerText {
			t.Errorf("Generated(%q) = %+v", text, a)
		}
	}
}

func TestEmpty(t *testing.T) {
	a := Empty("q")
	if a.Outcome != NoContext || a.Text != "No relevant information found." || a.Rewritten != "q" {
		t.Errorf("got %+v", a)
	}
}
