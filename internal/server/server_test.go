package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"library-catalog/internal/config"
	"library-catalog/internal/service"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type ServerTestSuite struct {
	suite.Suite
	srv        *Server
	http       *httptest.Server
	adminToken string
}

func (s *ServerTestSuite) SetupTest() {
	cfg := config.Default()
	cfg.StorageDriver = config.StorageMemory
	cfg.OverdueScanEnabled = false
	cfg.NotificationRetryBackoff = time.Millisecond
	cfg.TokenSecret = "server-test"

	srv, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)
	srv.StartWorkers()

	s.srv = srv
	s.http = httptest.NewServer(srv.Handler())

	_, err = srv.Users().CreateAdmin(context.Background(), &service.RegisterRequest{
		Username: "librarian", Email: "librarian@example.com", Password: "librarian-pass",
	})
	s.Require().NoError(err)
	s.adminToken = s.login("librarian", "librarian-pass")
}

func (s *ServerTestSuite) TearDownTest() {
	s.http.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.NoError(s.srv.Stop(ctx))
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) do(method, path, token string, body interface{}) (int, envelope) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, s.http.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func (s *ServerTestSuite) register(username string) {
	status, env := s.do(http.MethodPost, "/users", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": username + "-password",
	})
	s.Require().Equal(http.StatusCreated, status, "%+v", env.Error)
}

func (s *ServerTestSuite) login(username, password string) string {
	status, env := s.do(http.MethodPost, "/users/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	s.Require().Equal(http.StatusOK, status)

	var result struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Require().NotEmpty(result.Token)
	return result.Token
}

func (s *ServerTestSuite) member(username string) string {
	s.register(username)
	return s.login(username, username+"-password")
}

func (s *ServerTestSuite) createBook(isbn string, copies int) int64 {
	status, env := s.do(http.MethodPost, "/books", s.adminToken, map[string]interface{}{
		"title":          "The Left Hand of Darkness",
		"author":         "Ursula K. Le Guin",
		"isbn":           isbn,
		"published_date": "1969-03-01",
		"copies":         copies,
	})
	s.Require().Equal(http.StatusCreated, status, "%+v", env.Error)

	var book struct {
		ID int64 `json:"id"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &book))
	return book.ID
}

type transactionView struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	ReturnDate *string `json:"return_date"`
}

func (s *ServerTestSuite) TestHealth() {
	status, _ := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, status)
}

func (s *ServerTestSuite) TestRequiresAuthentication() {
	status, env := s.do(http.MethodGet, "/books", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Require().NotNil(env.Error)
	s.Equal("unauthorized", env.Error.Code)

	status, _ = s.do(http.MethodGet, "/books", "not-a-token", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *ServerTestSuite) TestMemberCannotManageBooks() {
	token := s.member("patron")

	status, env := s.do(http.MethodPost, "/books", token, map[string]interface{}{
		"title": "x", "author": "y", "isbn": "9780000000001", "published_date": "2000-01-01",
	})
	s.Equal(http.StatusForbidden, status)
	s.Equal("forbidden", env.Error.Code)
}

func (s *ServerTestSuite) TestCheckoutAndReturnFlow() {
	token := s.member("alice")
	other := s.member("bob")
	bookID := s.createBook("9780441478125", 1)

	status, env := s.do(http.MethodPost, fmt.Sprintf("/books/%d/checkout", bookID), token, nil)
	s.Require().Equal(http.StatusCreated, status, "%+v", env.Error)
	var tx transactionView
	s.Require().NoError(json.Unmarshal(env.Data, &tx))
	s.Equal("open", tx.Status)

	status, env = s.do(http.MethodPost, fmt.Sprintf("/books/%d/checkout", bookID), token, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("already_checked_out", env.Error.Code)

	status, env = s.do(http.MethodPost, fmt.Sprintf("/books/%d/checkout", bookID), other, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("no_copies_available", env.Error.Code)

	status, _ = s.do(http.MethodGet, "/transactions/"+tx.ID, other, nil)
	s.Equal(http.StatusForbidden, status)

	status, env = s.do(http.MethodPost, "/transactions/"+tx.ID+"/return", token, nil)
	s.Require().Equal(http.StatusOK, status, "%+v", env.Error)
	var returned transactionView
	s.Require().NoError(json.Unmarshal(env.Data, &returned))
	s.Equal("returned", returned.Status)
	s.NotNil(returned.ReturnDate)

	status, env = s.do(http.MethodPost, "/transactions/"+tx.ID+"/return", token, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("already_returned", env.Error.Code)

	status, env = s.do(http.MethodGet, fmt.Sprintf("/books/%d", bookID), token, nil)
	s.Require().Equal(http.StatusOK, status)
	var book struct {
		AvailableCopies int `json:"available_copies"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &book))
	s.Equal(1, book.AvailableCopies)

	status, env = s.do(http.MethodGet, "/users/me/notifications", token, nil)
	s.Require().Equal(http.StatusOK, status)
	var notes []struct {
		Type string `json:"notification_type"`
	}
	s.Require().NoError(json.Unmarshal(env.Data, &notes))
	s.Require().Len(notes, 1)
	s.Equal("returned", notes[0].Type)
}

func (s *ServerTestSuite) TestNotFound() {
	token := s.member("carol")

	status, env := s.do(http.MethodPost, "/books/999/checkout", token, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("book_not_found", env.Error.Code)

	status, env = s.do(http.MethodPost, "/transactions/00000000-0000-0000-0000-000000000000/return", token, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("transaction_not_found", env.Error.Code)

	status, _ = s.do(http.MethodPost, "/transactions/not-a-uuid/return", token, nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *ServerTestSuite) TestConcurrentCheckoutsOnLastCopy() {
	bookID := s.createBook("9780553293357", 1)

	tokens := make([]string, 5)
	for i := range tokens {
		tokens[i] = s.member(fmt.Sprintf("racer%d", i))
	}

	var wg sync.WaitGroup
	statuses := make(chan int, len(tokens))
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/books/%d/checkout", s.http.URL, bookID), nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := s.http.Client().Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			resp.Body.Close()
			statuses <- resp.StatusCode
		}(token)
	}
	wg.Wait()
	close(statuses)

	created := 0
	for status := range statuses {
		if status == http.StatusCreated {
			created++
		} else {
			assert.Equal(s.T(), http.StatusBadRequest, status)
		}
	}
	s.Equal(1, created)
}

func (s *ServerTestSuite) TestAdminScan() {
	token := s.member("dave")

	status, _ := s.do(http.MethodPost, "/overdue/scan", token, nil)
	s.Equal(http.StatusForbidden, status)

	status, env := s.do(http.MethodPost, "/overdue/scan", s.adminToken, nil)
	s.Require().Equal(http.StatusOK, status)
	var result service.ScanResult
	s.Require().NoError(json.Unmarshal(env.Data, &result))
	s.Equal(0, result.Marked)

	status, _ = s.do(http.MethodGet, "/transactions/overdue", s.adminToken, nil)
	s.Equal(http.StatusOK, status)
}

func TestNewServer_RejectsBadPenalty(t *testing.T) {
	cfg := config.Default()
	cfg.StorageDriver = config.StorageMemory
	cfg.PenaltyPerDay = "lots"

	_, err := NewServer(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}
