// Package quiz holds the domain model for the law-test catalog: branches of
// law grouping tests, tests owning an ordered question sequence, and the
// grading of submitted answers against a test's answer key.
package quiz

// TestType governs how a question's correct-answer encoding is interpreted.
type TestType string

const (
	TestTypeSingleChoice   TestType = "SingleChoice"
	TestTypeMultipleChoice TestType = "MultipleChoice"
	TestTypeTrueFalse      TestType = "TrueFalse"
	// TestTypeMatching stores its answer key as a delimited
	// "item:match;item:match" string.
	TestTypeMatching TestType = "Matching"
)

// Valid reports whether t is one of the recognized test type tags.
func (t TestType) Valid() bool {
	switch t {
	case TestTypeSingleChoice, TestTypeMultipleChoice, TestTypeTrueFalse, TestTypeMatching:
		return true
	}
	return false
}

// Role distinguishes regular users from administrators.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// LawBranch is a top-level subject category grouping tests.
type LawBranch struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Test belongs to exactly one law branch and owns its questions. Question
// order is the order answers are submitted and graded against.
type Test struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	TestType    TestType   `json:"testType"`
	LawBranchID int64      `json:"lawBranchId"`
	Questions   []Question `json:"questions"`
}

// Question carries its option strings and the correct-answer encoding.
type Question struct {
	ID            int64    `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	TestID        int64    `json:"testId"`
}

// User is independent of the catalog hierarchy. The password digest and
// the issued token never leave the server.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
	Token        string `json:"-"`
}

// TestResult is computed per grading call, returned and discarded; it is
// never persisted.
type TestResult struct {
	TestID         int64 `json:"testId"`
	CorrectAnswers int   `json:"correctAnswers"`
	TotalQuestions int   `json:"totalQuestions"`
}
