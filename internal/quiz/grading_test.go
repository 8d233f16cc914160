package quiz

import "testing"

func questionsWithAnswers(answers ...string) []Question {
	qs := make([]Question, len(answers))
	for i, a := range answers {
		qs[i] = Question{
			ID:            int64(i + 1),
			Text:          "question",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: a,
		}
	}
	return qs
}

func TestGrade(t *testing.T) {
	tests := []struct {
		name        string
		key         []string
		answers     []string
		wantCorrect int
		wantTotal   int
	}{
		{
			name:        "all correct",
			key:         []string{"A", "B", "C"},
			answers:     []string{"A", "B", "C"},
			wantCorrect: 3,
			wantTotal:   3,
		},
		{
			name:        "one wrong",
			key:         []string{"A", "B", "C"},
			answers:     []string{"A", "X", "C"},
			wantCorrect: 2,
			wantTotal:   3,
		},
		{
			name:        "all wrong",
			key:         []string{"A", "B"},
			answers:     []string{"B", "A"},
			wantCorrect: 0,
			wantTotal:   2,
		},
		{
			name:        "case sensitive",
			key:         []string{"True", "False"},
			answers:     []string{"true", "False"},
			wantCorrect: 1,
			wantTotal:   2,
		},
		{
			name:        "no trimming",
			key:         []string{"A"},
			answers:     []string{" A"},
			wantCorrect: 0,
			wantTotal:   1,
		},
		{
			name:        "empty submission",
			key:         []string{"A", "B"},
			answers:     nil,
			wantCorrect: 0,
			wantTotal:   2,
		},
		{
			name:        "no questions",
			key:         nil,
			answers:     []string{"A"},
			wantCorrect: 0,
			wantTotal:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Grade(42, questionsWithAnswers(tt.key...), tt.answers)
			if result.TestID != 42 {
				t.Errorf("TestID = %d, want 42", result.TestID)
			}
			if result.CorrectAnswers != tt.wantCorrect {
				t.Errorf("CorrectAnswers = %d, want %d", result.CorrectAnswers, tt.wantCorrect)
			}
			if result.TotalQuestions != tt.wantTotal {
				t.Errorf("TotalQuestions = %d, want %d", result.TotalQuestions, tt.wantTotal)
			}
		})
	}
}

// A submission shorter than the question list must not fault; only the
// supplied positions are graded and the total stays the full count.
func TestGradeShortSubmission(t *testing.T) {
	result := Grade(1, questionsWithAnswers("A", "B", "C"), []string{"A", "B"})
	if result.CorrectAnswers != 2 {
		t.Errorf("CorrectAnswers = %d, want 2", result.CorrectAnswers)
	}
	if result.TotalQuestions != 3 {
		t.Errorf("TotalQuestions = %d, want 3", result.TotalQuestions)
	}
}

// Extra answers beyond the question count are ignored.
func TestGradeLongSubmission(t *testing.T) {
	result := Grade(1, questionsWithAnswers("A"), []string{"A", "B", "C"})
	if result.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", result.CorrectAnswers)
	}
	if result.TotalQuestions != 1 {
		t.Errorf("TotalQuestions = %d, want 1", result.TotalQuestions)
	}
}

// Matching-type keys are delimited pair strings graded by exact equality of
// the whole encoding, not by structural pair comparison.
func TestGradeMatchingKey(t *testing.T) {
	key := "plaintiff:claims;defendant:answers"
	result := Grade(1, questionsWithAnswers(key), []string{key})
	if result.CorrectAnswers != 1 {
		t.Errorf("CorrectAnswers = %d, want 1", result.CorrectAnswers)
	}

	reordered := "defendant:answers;plaintiff:claims"
	result = Grade(1, questionsWithAnswers(key), []string{reordered})
	if result.CorrectAnswers != 0 {
		t.Errorf("reordered pairs should not match, got %d correct", result.CorrectAnswers)
	}
}

func TestTestTypeValid(t *testing.T) {
	for _, tag := range []TestType{TestTypeSingleChoice, TestTypeMultipleChoice, TestTypeTrueFalse, TestTypeMatching} {
		if !tag.Valid() {
			t.Errorf("%s should be valid", tag)
		}
	}
	if TestType("Essay").Valid() {
		t.Error("unknown tag should not be valid")
	}
}
