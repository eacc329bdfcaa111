package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"

	"github.com/myrjola/flowcast/internal/campaign"
	"github.com/myrjola/flowcast/internal/e2etest"
	"github.com/myrjola/flowcast/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type question map[string]any

func seedQuestions(t *testing.T, server *e2etest.Server) {
	t.Helper()
	questions := map[string]question{
		"name": {"text": "What is your name?", "kind": "text", "order": 1, "defaultNext": "colour"},
		"colour": {
			"text":  "Pick a colour",
			"kind":  "choice",
			"order": 2,
			"input": map[string]any{
				"options": []string{"Red", "Blue"},
				"routes":  []map[string]string{{"option": "Red", "next": "bye"}},
			},
		},
		"bye": {"text": "Thanks!", "kind": "text", "order": 3},
	}
	for id, q := range questions {
		status, err := server.Client().JSON(t.Context(), http.MethodPut, "/api/questions/"+id, q, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status, id)
	}
}

func postCSV(t *testing.T, server *e2etest.Server, body string) (int, campaign.Report) {
	t.Helper()
	resp, err := server.Client().Do(t.Context(), http.MethodPost, "/api/campaigns", "text/csv", strings.NewReader(body))
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	var report campaign.Report
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, decodeJSON(resp.Body, &report))
	}
	return resp.StatusCode, report
}

const recipientList = `phoneNumber,userName
+91 99998 88877,Asha
919999888877,Duplicate
917878787878,
`

func TestHealthy(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, nil)

	resp, err := server.Client().Get(t.Context(), "/api/healthy")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","campaigns":false}`, string(body))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestQuestions(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, nil)
	client := server.Client()
	seedQuestions(t, server)

	var questions []models.Question
	status, err := client.JSON(t.Context(), http.MethodGet, "/api/questions", nil, &questions)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, questions, 3)
	assert.Equal(t, models.QuestionID("name"), questions[0].ID)
	assert.Equal(t, models.AnswerKindChoice, questions[1].Kind())

	t.Run("reorder", func(t *testing.T) {
		status, err = client.JSON(t.Context(), http.MethodPut, "/api/questions/reorder",
			map[string]any{"ids": []string{"colour", "name", "bye"}}, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, status)

		status, err = client.JSON(t.Context(), http.MethodGet, "/api/questions", nil, &questions)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, models.QuestionID("colour"), questions[0].ID)
		assert.Equal(t, models.QuestionID("name"), questions[1].ID)
	})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{
			name:   "reorder unknown question",
			method: http.MethodPut,
			path:   "/api/questions/reorder",
			body:   map[string]any{"ids": []string{"missing"}},
			want:   http.StatusNotFound,
		},
		{
			name:   "reorder without ids",
			method: http.MethodPut,
			path:   "/api/questions/reorder",
			body:   map[string]any{"ids": []string{}},
			want:   http.StatusBadRequest,
		},
		{
			name:   "invalid question",
			method: http.MethodPut,
			path:   "/api/questions/broken",
			body:   question{"text": "Pick", "kind": "choice", "input": map[string]any{"options": []string{}}},
			want:   http.StatusUnprocessableEntity,
		},
		{
			name:   "mismatched id",
			method: http.MethodPut,
			path:   "/api/questions/name",
			body:   question{"id": "other", "text": "What is your name?", "kind": "text"},
			want:   http.StatusBadRequest,
		},
		{name: "delete", method: http.MethodDelete, path: "/api/questions/bye", want: http.StatusNoContent},
		{name: "delete missing", method: http.MethodDelete, path: "/api/questions/bye", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err = client.JSON(t.Context(), tt.method, tt.path, tt.body, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestCampaigns(t *testing.T) {
	t.Parallel()
	channel := newFakeChannel(t, "917878787878")
	server := startTestServer(t, channel)
	seedQuestions(t, server)

	status, report := postCSV(t, server, recipientList)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, report.TotalRows)
	assert.Equal(t, 2, report.CreatedRecords)
	assert.Equal(t, 1, report.SentCount)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, "917878787878", report.Errors[0].RecipientID)
	assert.False(t, report.Cancelled)
	assert.Equal(t, []string{"919999888877", "917878787878"}, channel.recipients())

	t.Run("multipart upload is idempotent", func(t *testing.T) {
		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		part, err := form.CreateFormFile("file", "recipients.csv")
		require.NoError(t, err)
		_, err = io.WriteString(part, recipientList)
		require.NoError(t, err)
		require.NoError(t, form.Close())

		resp, err := server.Client().Do(t.Context(), http.MethodPost, "/api/campaigns", form.FormDataContentType(), &body)
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var second campaign.Report
		require.NoError(t, decodeJSON(resp.Body, &second))
		assert.Equal(t, 0, second.CreatedRecords)
		assert.Equal(t, 1, second.SentCount)
	})

	t.Run("missing phone column", func(t *testing.T) {
		status, _ = postCSV(t, server, "name\nAsha\n")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("no valid phone numbers", func(t *testing.T) {
		status, _ = postCSV(t, server, "phoneNumber,userName\nabc,Asha\n,\n")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("sample", func(t *testing.T) {
		resp, err := server.Client().Get(t.Context(), "/api/campaigns/sample")
		require.NoError(t, err)
		defer func() {
			_ = resp.Body.Close()
		}()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
		assert.True(t, strings.HasPrefix(string(body), "phoneNumber,userName\n"))
	})
}

func TestCampaigns_Preconditions(t *testing.T) {
	t.Parallel()

	t.Run("no questions", func(t *testing.T) {
		t.Parallel()
		server := startTestServer(t, newFakeChannel(t))
		status, _ := postCSV(t, server, recipientList)
		assert.Equal(t, http.StatusConflict, status)
	})

	t.Run("no channel", func(t *testing.T) {
		t.Parallel()
		server := startTestServer(t, nil)
		seedQuestions(t, server)
		status, _ := postCSV(t, server, recipientList)
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestRecipients(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, newFakeChannel(t))
	client := server.Client()
	seedQuestions(t, server)
	status, _ := postCSV(t, server, recipientList)
	require.Equal(t, http.StatusOK, status)

	type next struct {
		Next *string `json:"next"`
	}

	t.Run("record responses", func(t *testing.T) {
		var got next
		status, err := client.JSON(t.Context(), http.MethodPut, "/api/recipients/919999888877/responses/name",
			map[string]any{"answer": "Asha", "confirmed": true}, &got)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.NotNil(t, got.Next)
		assert.Equal(t, "colour", *got.Next)

		status, err = client.JSON(t.Context(), http.MethodPut, "/api/recipients/919999888877/responses/colour",
			map[string]any{"answer": "Blue"}, &got)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.Nil(t, got.Next)

		var recipient models.Recipient
		status, err = client.JSON(t.Context(), http.MethodGet, "/api/recipients/919999888877", nil, &recipient)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Asha", recipient.DisplayName)
		require.Len(t, recipient.Responses, 2)
		assert.Equal(t, models.QuestionID("name"), recipient.Responses[0].QuestionID)
		assert.True(t, recipient.Responses[0].Confirmed)
	})

	t.Run("invalid responses", func(t *testing.T) {
		tests := []struct {
			name string
			path string
			body any
			want int
		}{
			{
				name: "unknown option",
				path: "/api/recipients/919999888877/responses/colour",
				body: map[string]any{"answer": "Green"},
				want: http.StatusUnprocessableEntity,
			},
			{
				name: "wrong answer type",
				path: "/api/recipients/919999888877/responses/name",
				body: map[string]any{"answer": 42},
				want: http.StatusUnprocessableEntity,
			},
			{
				name: "unknown recipient",
				path: "/api/recipients/910000000000/responses/name",
				body: map[string]any{"answer": "Nobody"},
				want: http.StatusNotFound,
			},
			{
				name: "unknown question",
				path: "/api/recipients/919999888877/responses/missing",
				body: map[string]any{"answer": "Asha"},
				want: http.StatusNotFound,
			},
			{
				name: "unknown field",
				path: "/api/recipients/919999888877/responses/name",
				body: map[string]any{"answer": "Asha", "extra": true},
				want: http.StatusBadRequest,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				status, err := client.JSON(t.Context(), http.MethodPut, tt.path, tt.body, nil)
				require.NoError(t, err)
				assert.Equal(t, tt.want, status)
			})
		}
	})

	t.Run("viewed filter", func(t *testing.T) {
		var list []models.Recipient
		status, err := client.JSON(t.Context(), http.MethodGet, "/api/recipients?adminViewed=false", nil, &list)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, list, 2)

		status, err = client.JSON(t.Context(), http.MethodPut, "/api/recipients/917878787878/viewed", nil, nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, status)

		status, err = client.JSON(t.Context(), http.MethodGet, "/api/recipients?adminViewed=true", nil, &list)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, status)
		require.Len(t, list, 1)
		assert.Equal(t, "917878787878", list[0].ID)

		status, err = client.JSON(t.Context(), http.MethodGet, "/api/recipients?adminViewed=maybe", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("delete", func(t *testing.T) {
		steps := []struct {
			method string
			path   string
			want   int
		}{
			{http.MethodDelete, "/api/recipients/919999888877/responses/name", http.StatusNoContent},
			{http.MethodDelete, "/api/recipients/919999888877/responses/name", http.StatusNotFound},
			{http.MethodDelete, "/api/recipients/919999888877", http.StatusNoContent},
			{http.MethodGet, "/api/recipients/919999888877", http.StatusNotFound},
			{http.MethodDelete, "/api/recipients/919999888877", http.StatusNotFound},
		}
		for _, step := range steps {
			status, err := client.JSON(t.Context(), step.method, step.path, nil, nil)
			require.NoError(t, err)
			assert.Equal(t, step.want, status, "%s %s", step.method, step.path)
		}
	})
}

func TestMetrics(t *testing.T) {
	t.Parallel()
	server := startTestServer(t, nil)

	resp, err := server.Client().Get(t.Context(), "/api/questions")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	resp, err = server.Client().Get(t.Context(), "/metrics")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `flowcast_http_requests_total{method="GET",route="GET /api/questions",status="200"} 1`)
}
