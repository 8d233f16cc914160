// Package store persists the law-test catalog and user accounts in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/lawtest/lawtest/internal/quiz"
)

var (
	// ErrNotFound is returned when a branch, test or question id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUsernameTaken is returned when a registration loses the uniqueness race.
	ErrUsernameTaken = errors.New("username already exists")
)

// Store handles SQLite operations for the catalog and user accounts
type Store struct {
	db *sql.DB
}

// New opens (creating if necessary) the database at path and ensures the
// schema exists.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under concurrent sessions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate ensures the database schema is up to date
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS law_branches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS tests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		test_type TEXT NOT NULL,
		law_branch_id INTEGER NOT NULL,
		FOREIGN KEY (law_branch_id) REFERENCES law_branches(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		test_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		text TEXT NOT NULL,
		options_json TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		FOREIGN KEY (test_id) REFERENCES tests(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		token TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_tests_law_branch ON tests(law_branch_id);
	CREATE INDEX IF NOT EXISTS idx_questions_test ON questions(test_id, position);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create initial schema: %w", err)
	}
	return nil
}

// Catalog operations

// ListBranches returns all law branches.
func (s *Store) ListBranches(ctx context.Context) ([]quiz.LawBranch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description FROM law_branches ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := []quiz.LawBranch{}
	for rows.Next() {
		var b quiz.LawBranch
		if err := rows.Scan(&b.ID, &b.Name, &b.Description); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// ListTestsByBranch returns the tests under a branch, each with its
// questions in answer order.
func (s *Store) ListTestsByBranch(ctx context.Context, branchID int64) ([]quiz.Test, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, test_type, law_branch_id
		FROM tests WHERE law_branch_id = ? ORDER BY id
	`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tests := []quiz.Test{}
	for rows.Next() {
		var t quiz.Test
		if err := rows.Scan(&t.ID, &t.Name, &t.TestType, &t.LawBranchID); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tests {
		questions, err := s.questionsForTest(ctx, tests[i].ID)
		if err != nil {
			return nil, err
		}
		tests[i].Questions = questions
	}
	return tests, nil
}

// GetTestWithQuestions returns one test and its questions in answer order.
func (s *Store) GetTestWithQuestions(ctx context.Context, id int64) (*quiz.Test, error) {
	var t quiz.Test
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, test_type, law_branch_id FROM tests WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &t.TestType, &t.LawBranchID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	questions, err := s.questionsForTest(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Questions = questions
	return &t, nil
}

// ListQuestionsByTest returns the questions of a test in answer order.
func (s *Store) ListQuestionsByTest(ctx context.Context, testID int64) ([]quiz.Question, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id = ?`, testID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.questionsForTest(ctx, testID)
}

func (s *Store) questionsForTest(ctx context.Context, testID int64) ([]quiz.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, options_json, correct_answer, test_id
		FROM questions WHERE test_id = ? ORDER BY position
	`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []quiz.Question{}
	for rows.Next() {
		var q quiz.Question
		var optionsJSON string
		if err := rows.Scan(&q.ID, &q.Text, &optionsJSON, &q.CorrectAnswer, &q.TestID); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
			return nil, fmt.Errorf("corrupt options for question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// InsertBranch creates a law branch and returns it with its generated id.
func (s *Store) InsertBranch(ctx context.Context, name, description string) (*quiz.LawBranch, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO law_branches (name, description) VALUES (?, ?)
	`, name, description)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &quiz.LawBranch{ID: id, Name: name, Description: description}, nil
}

// InsertTest creates a test together with its initial question set in one
// transaction and fills in the generated ids.
func (s *Store) InsertTest(ctx context.Context, t *quiz.Test) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO tests (name, test_type, law_branch_id) VALUES (?, ?, ?)
	`, t.Name, string(t.TestType), t.LawBranchID)
	if err != nil {
		// A foreign key violation here means the referenced branch is gone.
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return ErrNotFound
		}
		return err
	}
	testID, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = testID

	for i := range t.Questions {
		q := &t.Questions[i]
		q.TestID = testID
		id, err := insertQuestionTx(ctx, tx, q, i)
		if err != nil {
			return err
		}
		q.ID = id
	}

	return tx.Commit()
}

// InsertQuestion appends a question to an existing test.
func (s *Store) InsertQuestion(ctx context.Context, q *quiz.Question) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM tests WHERE id = ?`, q.TestID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var position int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position)+1, 0) FROM questions WHERE test_id = ?
	`, q.TestID).Scan(&position)
	if err != nil {
		return err
	}

	id, err := insertQuestionTx(ctx, tx, q, position)
	if err != nil {
		return err
	}
	q.ID = id

	return tx.Commit()
}

func insertQuestionTx(ctx context.Context, tx *sql.Tx, q *quiz.Question, position int) (int64, error) {
	options := q.Options
	if options == nil {
		options = []string{}
	}
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return 0, err
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO questions (test_id, position, text, options_json, correct_answer)
		VALUES (?, ?, ?, ?, ?)
	`, q.TestID, position, q.Text, string(optionsJSON), q.CorrectAnswer)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// User operations

// FindUserByUsername returns the user with the given username.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (*quiz.User, error) {
	var u quiz.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, role, token FROM users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Token)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user and fills in the generated id. Concurrent
// registrations of the same username are resolved by the UNIQUE constraint;
// the loser gets ErrUsernameTaken.
func (s *Store) CreateUser(ctx context.Context, u *quiz.User) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, role, token)
		VALUES (?, ?, ?, ?)
	`, u.Username, u.PasswordHash, string(u.Role), u.Token)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrUsernameTaken
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// SetUserToken overwrites the user's stored opaque token.
func (s *Store) SetUserToken(ctx context.Context, userID int64, token string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET token = ? WHERE id = ?
	`, token, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
