package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawtest/lawtest/internal/quiz"
	"github.com/lawtest/lawtest/internal/store"
)

// fakeCatalog is an in-memory Catalog collaborator.
type fakeCatalog struct {
	branches []quiz.LawBranch
	tests    map[int64]*quiz.Test
	nextID   int64
	failWith error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{tests: map[int64]*quiz.Test{}, nextID: 1}
}

func (f *fakeCatalog) id() int64 {
	id := f.nextID
	f.nextID++
	return id
}

func (f *fakeCatalog) ListBranches(context.Context) ([]quiz.LawBranch, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.branches, nil
}

func (f *fakeCatalog) ListTestsByBranch(_ context.Context, branchID int64) ([]quiz.Test, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []quiz.Test
	for _, t := range f.tests {
		if t.LawBranchID == branchID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeCatalog) GetTestWithQuestions(_ context.Context, id int64) (*quiz.Test, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tests[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeCatalog) ListQuestionsByTest(_ context.Context, testID int64) ([]quiz.Question, error) {
	t, err := f.GetTestWithQuestions(context.Background(), testID)
	if err != nil {
		return nil, err
	}
	return t.Questions, nil
}

func (f *fakeCatalog) InsertBranch(_ context.Context, name, description string) (*quiz.LawBranch, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	b := quiz.LawBranch{ID: f.id(), Name: name, Description: description}
	f.branches = append(f.branches, b)
	return &b, nil
}

func (f *fakeCatalog) InsertTest(_ context.Context, t *quiz.Test) error {
	if f.failWith != nil {
		return f.failWith
	}
	found := false
	for _, b := range f.branches {
		if b.ID == t.LawBranchID {
			found = true
			break
		}
	}
	if !found {
		return store.ErrNotFound
	}
	t.ID = f.id()
	for i := range t.Questions {
		t.Questions[i].ID = f.id()
		t.Questions[i].TestID = t.ID
	}
	f.tests[t.ID] = t
	return nil
}

func (f *fakeCatalog) InsertQuestion(_ context.Context, q *quiz.Question) error {
	if f.failWith != nil {
		return f.failWith
	}
	t, ok := f.tests[q.TestID]
	if !ok {
		return store.ErrNotFound
	}
	q.ID = f.id()
	t.Questions = append(t.Questions, *q)
	return nil
}

// fakeUsers is an in-memory Users collaborator.
type fakeUsers struct {
	byName map[string]*quiz.User
	nextID int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: map[string]*quiz.User{}, nextID: 1}
}

func (f *fakeUsers) FindUserByUsername(_ context.Context, username string) (*quiz.User, error) {
	u, ok := f.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, u *quiz.User) error {
	if _, ok := f.byName[u.Username]; ok {
		return store.ErrUsernameTaken
	}
	u.ID = f.nextID
	f.nextID++
	f.byName[u.Username] = u
	return nil
}

func (f *fakeUsers) SetUserToken(_ context.Context, userID int64, token string) error {
	for _, u := range f.byName {
		if u.ID == userID {
			u.Token = token
			return nil
		}
	}
	return store.ErrNotFound
}

// fakeHasher is a transparent Hasher for tests.
type fakeHasher struct{}

func (fakeHasher) Hash(secret string) (string, error) { return "digest:" + secret, nil }
func (fakeHasher) Verify(secret, digest string) bool  { return digest == "digest:"+secret }

func newTestDispatcher() (*Dispatcher, *fakeCatalog, *fakeUsers) {
	catalog := newFakeCatalog()
	users := newFakeUsers()
	return New(catalog, users, fakeHasher{}), catalog, users
}

func dispatchJSON(t *testing.T, d *Dispatcher, message string) map[string]interface{} {
	t.Helper()
	raw := d.Dispatch(context.Background(), []byte(message))
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &envelope), "response must be well-formed JSON: %s", raw)
	return envelope
}

func TestDispatchMalformedInput(t *testing.T) {
	d, _, _ := newTestDispatcher()

	for _, message := range []string{
		"not json at all",
		"",
		"{}",
		`{"foo":"bar"}`,
		`{"action":42}`,
		`{"action":null}`,
		`[1,2,3]`,
	} {
		envelope := dispatchJSON(t, d, message)
		assert.Equal(t, "error", envelope["status"], "input: %q", message)
		assert.Equal(t, "Unknown action", envelope["message"], "input: %q", message)
		assert.NotContains(t, envelope, "action", "fallback must not echo an action")
	}
}

func TestDispatchUnknownAction(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"drop_tables"}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Unknown action", envelope["message"])
}

func TestEveryActionEchoesItsName(t *testing.T) {
	d, catalog, _ := newTestDispatcher()

	branch, err := catalog.InsertBranch(context.Background(), "Criminal Law", "")
	require.NoError(t, err)
	test := &quiz.Test{Name: "Basics", TestType: quiz.TestTypeSingleChoice, LawBranchID: branch.ID,
		Questions: []quiz.Question{{Text: "Q", Options: []string{"A", "B"}, CorrectAnswer: "A"}}}
	require.NoError(t, catalog.InsertTest(context.Background(), test))

	requests := map[string]string{
		ActionGetLawBranches:     `{"action":"get_law_branches"}`,
		ActionGetTestCollections: `{"action":"get_test_collections","lawBranchId":1}`,
		ActionGetTestQuestions:   `{"action":"get_test_questions","testCollectionId":2}`,
		ActionSubmitTestAnswer:   `{"action":"submit_test_answer","testId":2,"answers":["A"]}`,
		ActionCreateTest:         `{"action":"create_test","name":"T","testType":"TrueFalse","lawBranchId":1,"questions":[]}`,
		ActionCreateQuestion:     `{"action":"create_question","text":"Q2","options":["A"],"correctAnswer":"A","testId":2}`,
		ActionCreateLawBranch:    `{"action":"create_law_branch","name":"Tax Law"}`,
		ActionRegister:           `{"action":"register","username":"bob","password":"pw"}`,
		ActionLogin:              `{"action":"login","username":"alice","password":"pw"}`,
	}

	// login needs an existing account; register alice outside the loop.
	envelope := dispatchJSON(t, d, `{"action":"register","username":"alice","password":"pw"}`)
	require.Equal(t, "success", envelope["status"], "register: %v", envelope)

	for action, message := range requests {
		envelope := dispatchJSON(t, d, message)
		assert.Equal(t, action, envelope["action"], "action %s", action)
		assert.Equalf(t, "success", envelope["status"], "action %s: %v", action, envelope)
	}
}

func TestGetLawBranchesIdempotent(t *testing.T) {
	d, catalog, _ := newTestDispatcher()
	_, err := catalog.InsertBranch(context.Background(), "Civil Law", "contracts")
	require.NoError(t, err)

	first := dispatchJSON(t, d, `{"action":"get_law_branches"}`)
	second := dispatchJSON(t, d, `{"action":"get_law_branches"}`)
	assert.Equal(t, first, second)
}

func TestGetTestCollectionsCoercesStringID(t *testing.T) {
	d, catalog, _ := newTestDispatcher()

	branch, err := catalog.InsertBranch(context.Background(), "Labor Law", "")
	require.NoError(t, err)
	test := &quiz.Test{Name: "Overtime", TestType: quiz.TestTypeTrueFalse, LawBranchID: branch.ID}
	require.NoError(t, catalog.InsertTest(context.Background(), test))

	// The browser client stringifies lawBranchId; both forms must work.
	for _, message := range []string{
		`{"action":"get_test_collections","lawBranchId":1}`,
		`{"action":"get_test_collections","lawBranchId":"1"}`,
	} {
		envelope := dispatchJSON(t, d, message)
		require.Equal(t, "success", envelope["status"], "message: %s", message)
		collections := envelope["collections"].([]interface{})
		assert.Len(t, collections, 1)
	}
}

func TestGetTestCollectionsMissingField(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"get_test_collections"}`)
	assert.Equal(t, "get_test_collections", envelope["action"])
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "lawBranchId is required", envelope["message"])
}

func TestGetTestQuestionsNotFound(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"get_test_questions","testCollectionId":99}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Test not found", envelope["message"])
}

func TestSubmitTestAnswerGrades(t *testing.T) {
	d, catalog, _ := newTestDispatcher()

	branch, err := catalog.InsertBranch(context.Background(), "Criminal Law", "")
	require.NoError(t, err)
	test := &quiz.Test{Name: "Basics", TestType: quiz.TestTypeSingleChoice, LawBranchID: branch.ID,
		Questions: []quiz.Question{
			{Text: "Q1", CorrectAnswer: "A"},
			{Text: "Q2", CorrectAnswer: "B"},
			{Text: "Q3", CorrectAnswer: "C"},
		}}
	require.NoError(t, catalog.InsertTest(context.Background(), test))

	envelope := dispatchJSON(t, d, `{"action":"submit_test_answer","testId":2,"answers":["A","X","C"]}`)
	require.Equal(t, "success", envelope["status"], "%v", envelope)

	result := envelope["result"].(map[string]interface{})
	assert.Equal(t, float64(2), result["correctAnswers"])
	assert.Equal(t, float64(3), result["totalQuestions"])
	assert.Equal(t, float64(2), result["testId"])
}

func TestSubmitTestAnswerShortSubmission(t *testing.T) {
	d, catalog, _ := newTestDispatcher()

	branch, err := catalog.InsertBranch(context.Background(), "Criminal Law", "")
	require.NoError(t, err)
	test := &quiz.Test{Name: "Basics", TestType: quiz.TestTypeSingleChoice, LawBranchID: branch.ID,
		Questions: []quiz.Question{
			{Text: "Q1", CorrectAnswer: "A"},
			{Text: "Q2", CorrectAnswer: "B"},
			{Text: "Q3", CorrectAnswer: "C"},
		}}
	require.NoError(t, catalog.InsertTest(context.Background(), test))

	envelope := dispatchJSON(t, d, `{"action":"submit_test_answer","testId":2,"answers":["A","B"]}`)
	require.Equal(t, "success", envelope["status"])

	result := envelope["result"].(map[string]interface{})
	assert.Equal(t, float64(2), result["correctAnswers"])
	assert.Equal(t, float64(3), result["totalQuestions"])
}

func TestSubmitTestAnswerUnknownTest(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"submit_test_answer","testId":404,"answers":[]}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Test not found", envelope["message"])
}

func TestCreateTestValidation(t *testing.T) {
	d, _, _ := newTestDispatcher()

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"empty name", `{"action":"create_test","name":"  ","testType":"TrueFalse","lawBranchId":1}`, "name is required"},
		{"bad type", `{"action":"create_test","name":"T","testType":"Essay","lawBranchId":1}`, `unknown test type "Essay"`},
		{"missing branch", `{"action":"create_test","name":"T","testType":"TrueFalse"}`, "lawBranchId is required"},
		{"empty question text", `{"action":"create_test","name":"T","testType":"TrueFalse","lawBranchId":1,"questions":[{"text":"","options":[],"correctAnswer":"True"}]}`, "question text is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envelope := dispatchJSON(t, d, tt.message)
			assert.Equal(t, "error", envelope["status"])
			assert.Equal(t, tt.want, envelope["message"])
		})
	}
}

func TestCreateTestReturnsGeneratedIDs(t *testing.T) {
	d, catalog, _ := newTestDispatcher()
	_, err := catalog.InsertBranch(context.Background(), "Tax Law", "")
	require.NoError(t, err)

	envelope := dispatchJSON(t, d, `{"action":"create_test","name":"VAT","testType":"MultipleChoice","lawBranchId":1,"questions":[{"text":"Q1","options":["A","B"],"correctAnswer":"A"}]}`)
	require.Equal(t, "success", envelope["status"], "%v", envelope)

	test := envelope["test"].(map[string]interface{})
	assert.NotZero(t, test["id"])
	questions := test["questions"].([]interface{})
	require.Len(t, questions, 1)
	assert.NotZero(t, questions[0].(map[string]interface{})["id"])
}

func TestCreateTestUnknownBranch(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"create_test","name":"T","testType":"TrueFalse","lawBranchId":77,"questions":[]}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Law branch not found", envelope["message"])
}

func TestCreateQuestionUnknownTest(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"create_question","text":"Q","options":["A"],"correctAnswer":"A","testId":41}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Test not found", envelope["message"])
}

func TestCreateLawBranchDefaultsDescription(t *testing.T) {
	d, _, _ := newTestDispatcher()

	envelope := dispatchJSON(t, d, `{"action":"create_law_branch","name":"Family Law"}`)
	require.Equal(t, "success", envelope["status"])

	branch := envelope["branch"].(map[string]interface{})
	assert.Equal(t, "Family Law", branch["name"])
	assert.Equal(t, "", branch["description"])
}

func TestRegisterConflict(t *testing.T) {
	d, _, users := newTestDispatcher()

	first := dispatchJSON(t, d, `{"action":"register","username":"alice","password":"pw"}`)
	require.Equal(t, "success", first["status"])
	assert.NotEmpty(t, first["token"])

	user := first["user"].(map[string]interface{})
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "User", user["role"])
	assert.NotContains(t, user, "passwordHash")

	second := dispatchJSON(t, d, `{"action":"register","username":"alice","password":"other"}`)
	assert.Equal(t, "error", second["status"])
	assert.Equal(t, "Username already exists", second["message"])
	assert.Len(t, users.byName, 1)
}

func TestLoginIndistinguishableFailures(t *testing.T) {
	d, _, _ := newTestDispatcher()

	registered := dispatchJSON(t, d, `{"action":"register","username":"alice","password":"pw"}`)
	require.Equal(t, "success", registered["status"])

	unknownUser := dispatchJSON(t, d, `{"action":"login","username":"nobody","password":"pw"}`)
	wrongPassword := dispatchJSON(t, d, `{"action":"login","username":"alice","password":"bad"}`)

	assert.Equal(t, "error", unknownUser["status"])
	assert.Equal(t, "error", wrongPassword["status"])
	assert.Equal(t, unknownUser["message"], wrongPassword["message"])
}

func TestLoginRotatesToken(t *testing.T) {
	d, _, users := newTestDispatcher()

	registered := dispatchJSON(t, d, `{"action":"register","username":"alice","password":"pw"}`)
	firstToken := registered["token"].(string)

	loggedIn := dispatchJSON(t, d, `{"action":"login","username":"alice","password":"pw"}`)
	require.Equal(t, "success", loggedIn["status"])
	secondToken := loggedIn["token"].(string)

	assert.NotEqual(t, firstToken, secondToken)
	assert.Equal(t, secondToken, users.byName["alice"].Token)
}

// A classified error stays classified even when a handler wraps it with
// context on the way up.
func TestErrorEnvelopeUnwrapsWrappedErrors(t *testing.T) {
	d, _, _ := newTestDispatcher()

	wrapped := fmt.Errorf("find user: %w", Errorf(KindUnauthorized, "Invalid username or password"))
	raw := d.errorEnvelope("login", wrapped)

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Invalid username or password", envelope["message"])
}

func TestCollaboratorFailureStaysGeneric(t *testing.T) {
	d, catalog, _ := newTestDispatcher()
	catalog.failWith = errors.New("disk exploded: /var/db/lawtest.db")

	envelope := dispatchJSON(t, d, `{"action":"get_law_branches"}`)
	assert.Equal(t, "error", envelope["status"])
	assert.Equal(t, "Internal server error", envelope["message"])
	assert.NotContains(t, envelope["message"], "disk exploded")
}

func TestHandlerFailureDoesNotPoisonDispatcher(t *testing.T) {
	d, catalog, _ := newTestDispatcher()

	bad := dispatchJSON(t, d, `{"action":"create_test","name":"","testType":"TrueFalse","lawBranchId":1}`)
	assert.Equal(t, "error", bad["status"])

	_, err := catalog.InsertBranch(context.Background(), "Civil Law", "")
	require.NoError(t, err)
	good := dispatchJSON(t, d, `{"action":"get_law_branches"}`)
	assert.Equal(t, "success", good["status"])
}
