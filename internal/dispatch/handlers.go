package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lawtest/lawtest/internal/quiz"
	"github.com/lawtest/lawtest/internal/store"
)

func (d *Dispatcher) getLawBranches(ctx context.Context, _ json.RawMessage) (Payload, error) {
	branches, err := d.catalog.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	if branches == nil {
		branches = []quiz.LawBranch{}
	}
	return Payload{"branches": branches}, nil
}

func (d *Dispatcher) getTestCollections(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req getTestCollectionsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	tests, err := d.catalog.ListTestsByBranch(ctx, int64(*req.LawBranchID))
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	if tests == nil {
		tests = []quiz.Test{}
	}
	return Payload{"collections": tests}, nil
}

// getTestQuestions returns the questions including their correct-answer
// encodings, matching the original wire format. Exposing the key before
// grading is a known defect of that format; see DESIGN.md.
func (d *Dispatcher) getTestQuestions(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req getTestQuestionsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	questions, err := d.catalog.ListQuestionsByTest(ctx, int64(*req.TestCollectionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errorf(KindNotFound, "Test not found")
		}
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []quiz.Question{}
	}
	return Payload{"questions": questions}, nil
}

func (d *Dispatcher) submitTestAnswer(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req submitTestAnswerRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	test, err := d.catalog.GetTestWithQuestions(ctx, int64(*req.TestID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errorf(KindNotFound, "Test not found")
		}
		return nil, fmt.Errorf("load test: %w", err)
	}

	result := quiz.Grade(test.ID, test.Questions, *req.Answers)
	return Payload{"result": result}, nil
}

func (d *Dispatcher) createTest(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req createTestRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	test := &quiz.Test{
		Name:        req.Name,
		TestType:    req.TestType,
		LawBranchID: int64(*req.LawBranch),
		Questions:   make([]quiz.Question, len(req.Questions)),
	}
	for i, q := range req.Questions {
		test.Questions[i] = quiz.Question{
			Text:          q.Text,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		}
	}

	if err := d.catalog.InsertTest(ctx, test); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errorf(KindNotFound, "Law branch not found")
		}
		return nil, fmt.Errorf("insert test: %w", err)
	}
	return Payload{"test": test}, nil
}

func (d *Dispatcher) createQuestion(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req createQuestionRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	question := &quiz.Question{
		Text:          req.Text,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		TestID:        int64(*req.TestID),
	}
	if err := d.catalog.InsertQuestion(ctx, question); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errorf(KindNotFound, "Test not found")
		}
		return nil, fmt.Errorf("insert question: %w", err)
	}
	return Payload{"question": question}, nil
}

func (d *Dispatcher) createLawBranch(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req createLawBranchRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	branch, err := d.catalog.InsertBranch(ctx, req.Name, req.Description)
	if err != nil {
		return nil, fmt.Errorf("insert branch: %w", err)
	}
	return Payload{"branch": branch}, nil
}

func (d *Dispatcher) register(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req credentialsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	digest, err := d.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &quiz.User{
		Username:     req.Username,
		PasswordHash: digest,
		Role:         quiz.RoleUser,
	}
	if err := d.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			return nil, Errorf(KindConflict, "Username already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := d.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return Payload{"user": user, "token": token}, nil
}

func (d *Dispatcher) login(ctx context.Context, raw json.RawMessage) (Payload, error) {
	var req credentialsRequest
	if err := decode(raw, &req); err != nil {
		return nil, err
	}

	// A single message for both unknown username and wrong password keeps
	// usernames unenumerable.
	user, err := d.users.FindUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Errorf(KindUnauthorized, "Invalid username or password")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !d.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, Errorf(KindUnauthorized, "Invalid username or password")
	}

	token, err := d.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return Payload{"user": user, "token": token}, nil
}

// issueToken mints a fresh opaque token and overwrites the stored one. No
// handler validates the token on later calls; whether session authentication
// becomes a requirement is an open product decision recorded in DESIGN.md.
func (d *Dispatcher) issueToken(ctx context.Context, user *quiz.User) (string, error) {
	token := uuid.NewString()
	if err := d.users.SetUserToken(ctx, user.ID, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	user.Token = token
	return token, nil
}
