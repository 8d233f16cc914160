package quiz

// Grade scores a submitted answer sequence against a test's question order.
// Each position counts as correct when the submitted string equals the stored
// correct-answer string exactly (case-sensitive, no trimming); Matching-type
// keys are compared by the same whole-string rule. A submission shorter than
// the question list is graded over the supplied answers only, while the total
// always reflects the full question count.
func Grade(testID int64, questions []Question, answers []string) TestResult {
	n := len(answers)
	if len(questions) < n {
		n = len(questions)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if questions[i].CorrectAnswer == answers[i] {
			correct++
		}
	}

	return TestResult{
		TestID:         testID,
		CorrectAnswers: correct,
		TotalQuestions: len(questions),
	}
}
