// Package dispatch turns one decoded socket message into one response
// envelope. Nothing raised by a handler escapes this boundary: every outcome,
// including unparseable input, becomes a well-formed JSON envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/lawtest/lawtest/internal/logger"
	"github.com/lawtest/lawtest/internal/quiz"
)

// Registered action names.
const (
	ActionGetLawBranches     = "get_law_branches"
	ActionGetTestCollections = "get_test_collections"
	ActionGetTestQuestions   = "get_test_questions"
	ActionSubmitTestAnswer   = "submit_test_answer"
	ActionCreateTest         = "create_test"
	ActionCreateQuestion     = "create_question"
	ActionCreateLawBranch    = "create_law_branch"
	ActionRegister           = "register"
	ActionLogin              = "login"
)

// unknownActionEnvelope is the fallback for unparseable input or an
// unregistered action. No action field is echoed since none could be
// determined reliably.
var unknownActionEnvelope = []byte(`{"status":"error","message":"Unknown action"}`)

// Catalog is the storage collaborator for branches, tests and questions.
type Catalog interface {
	ListBranches(ctx context.Context) ([]quiz.LawBranch, error)
	ListTestsByBranch(ctx context.Context, branchID int64) ([]quiz.Test, error)
	GetTestWithQuestions(ctx context.Context, id int64) (*quiz.Test, error)
	ListQuestionsByTest(ctx context.Context, testID int64) ([]quiz.Question, error)
	InsertBranch(ctx context.Context, name, description string) (*quiz.LawBranch, error)
	InsertTest(ctx context.Context, t *quiz.Test) error
	InsertQuestion(ctx context.Context, q *quiz.Question) error
}

// Users is the storage collaborator for accounts.
type Users interface {
	FindUserByUsername(ctx context.Context, username string) (*quiz.User, error)
	CreateUser(ctx context.Context, u *quiz.User) error
	SetUserToken(ctx context.Context, userID int64, token string) error
}

// Hasher is the credential collaborator.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(secret, digest string) bool
}

// Payload carries the handler-specific success fields merged into the
// response envelope.
type Payload map[string]interface{}

type handlerFunc func(ctx context.Context, raw json.RawMessage) (Payload, error)

// Dispatcher maps action names to handlers. The table is built once at
// startup and shared read-only across connections.
type Dispatcher struct {
	catalog  Catalog
	users    Users
	hasher   Hasher
	handlers map[string]handlerFunc
	log      *logger.Logger
}

// New creates a Dispatcher with all nine actions registered.
func New(catalog Catalog, users Users, hasher Hasher) *Dispatcher {
	d := &Dispatcher{
		catalog: catalog,
		users:   users,
		hasher:  hasher,
		log:     logger.Global().WithPrefix("dispatch"),
	}
	d.handlers = map[string]handlerFunc{
		ActionGetLawBranches:     d.getLawBranches,
		ActionGetTestCollections: d.getTestCollections,
		ActionGetTestQuestions:   d.getTestQuestions,
		ActionSubmitTestAnswer:   d.submitTestAnswer,
		ActionCreateTest:         d.createTest,
		ActionCreateQuestion:     d.createQuestion,
		ActionCreateLawBranch:    d.createLawBranch,
		ActionRegister:           d.register,
		ActionLogin:              d.login,
	}
	return d
}

// Dispatch turns one raw message into exactly one JSON response envelope.
// Every envelope for a recognized action carries the action and status
// discriminator fields.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) []byte {
	var probe struct {
		Action *string `json:"action"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || probe.Action == nil {
		return unknownActionEnvelope
	}
	action := *probe.Action

	handler, ok := d.handlers[action]
	if !ok {
		d.log.Debug("unregistered action %q", action)
		return unknownActionEnvelope
	}

	payload, err := handler(ctx, raw)
	if err != nil {
		return d.errorEnvelope(action, err)
	}

	envelope := Payload{"action": action, "status": "success"}
	for key, value := range payload {
		envelope[key] = value
	}
	return marshalEnvelope(envelope)
}

// errorEnvelope converts a handler failure into an action-scoped error
// response. Unclassified errors are collaborator faults; their details stay
// in the log, not on the wire.
func (d *Dispatcher) errorEnvelope(action string, err error) []byte {
	message := "Internal server error"
	var derr *Error
	if errors.As(err, &derr) {
		message = derr.Message
		if derr.Kind == KindInternal {
			d.log.Error("%s: %s", action, derr.Message)
			message = "Internal server error"
		}
	} else {
		d.log.Error("%s: %v", action, err)
	}

	return marshalEnvelope(Payload{
		"action":  action,
		"status":  "error",
		"message": message,
	})
}

func marshalEnvelope(envelope Payload) []byte {
	data, err := json.Marshal(envelope)
	if err != nil {
		// Payload values are plain data; marshalling cannot realistically
		// fail, but a garbled response must never reach the wire.
		logger.Error("marshal envelope: %v", err)
		return unknownActionEnvelope
	}
	return data
}
