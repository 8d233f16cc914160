package dispatch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lawtest/lawtest/internal/quiz"
)

// IntID decodes a JSON number or a numeric string. The browser client sends
// some identifiers stringified, so both forms are accepted on the wire.
type IntID int64

func (id *IntID) UnmarshalJSON(data []byte) error {
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = IntID(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected integer or numeric string, got %s", data)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return fmt.Errorf("expected integer or numeric string, got %q", s)
	}
	*id = IntID(n)
	return nil
}

// Per-action request schemas. Required fields are pointers so a missing field
// is distinguishable from a zero value; each validate method runs before the
// handler body and yields a validation-kind Error.

type getTestCollectionsRequest struct {
	LawBranchID *IntID `json:"lawBranchId"`
}

func (r *getTestCollectionsRequest) validate() *Error {
	if r.LawBranchID == nil {
		return Errorf(KindValidation, "lawBranchId is required")
	}
	return nil
}

type getTestQuestionsRequest struct {
	TestCollectionID *IntID `json:"testCollectionId"`
}

func (r *getTestQuestionsRequest) validate() *Error {
	if r.TestCollectionID == nil {
		return Errorf(KindValidation, "testCollectionId is required")
	}
	return nil
}

type submitTestAnswerRequest struct {
	TestID  *IntID    `json:"testId"`
	Answers *[]string `json:"answers"`
}

func (r *submitTestAnswerRequest) validate() *Error {
	if r.TestID == nil {
		return Errorf(KindValidation, "testId is required")
	}
	if r.Answers == nil {
		return Errorf(KindValidation, "answers is required")
	}
	return nil
}

type questionPayload struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

func (q *questionPayload) validate() *Error {
	if strings.TrimSpace(q.Text) == "" {
		return Errorf(KindValidation, "question text is required")
	}
	return nil
}

type createTestRequest struct {
	Name      string            `json:"name"`
	TestType  quiz.TestType     `json:"testType"`
	LawBranch *IntID            `json:"lawBranchId"`
	Questions []questionPayload `json:"questions"`
}

func (r *createTestRequest) validate() *Error {
	if strings.TrimSpace(r.Name) == "" {
		return Errorf(KindValidation, "name is required")
	}
	if !r.TestType.Valid() {
		return Errorf(KindValidation, "unknown test type %q", string(r.TestType))
	}
	if r.LawBranch == nil {
		return Errorf(KindValidation, "lawBranchId is required")
	}
	for _, q := range r.Questions {
		if err := q.validate(); err != nil {
			return err
		}
	}
	return nil
}

type createQuestionRequest struct {
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	TestID        *IntID   `json:"testId"`
}

func (r *createQuestionRequest) validate() *Error {
	if strings.TrimSpace(r.Text) == "" {
		return Errorf(KindValidation, "text is required")
	}
	if r.TestID == nil {
		return Errorf(KindValidation, "testId is required")
	}
	return nil
}

type createLawBranchRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r *createLawBranchRequest) validate() *Error {
	if strings.TrimSpace(r.Name) == "" {
		return Errorf(KindValidation, "name is required")
	}
	return nil
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *credentialsRequest) validate() *Error {
	if r.Username == "" {
		return Errorf(KindValidation, "username is required")
	}
	if r.Password == "" {
		return Errorf(KindValidation, "password is required")
	}
	return nil
}

// decode unmarshals the raw message into a per-action schema. A mistyped
// field surfaces as a validation failure, not a handler fault.
func decode(raw json.RawMessage, dst interface{ validate() *Error }) *Error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return Errorf(KindValidation, "malformed request: %v", err)
	}
	return dst.validate()
}
