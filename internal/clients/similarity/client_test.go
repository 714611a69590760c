package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	t.Setenv("SIMILARITY_API_BASE_URL", server.URL)
	t.Setenv("SIMILARITY_API_KEY", "test-key")

	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestFindSimilarCoursesParsesResponse(t *testing.T) {
	wantCourseID := uuid.New()
	wantQuestionID := uuid.New()
	var gotBody similarCoursesRequest
	var gotAuth string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/similar-courses" {
			t.Errorf("path: got=%s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(similarCoursesResponse{
			SimilarCourses: []similarCourseEntry{
				{
					CourseID:   wantCourseID.String(),
					CourseName: "Linear Algebra",
					UnitName:   "Eigenvalues",
					Questions:  []string{wantQuestionID.String(), "not-a-uuid"},
				},
				// Malformed course ids are skipped, not fatal.
				{CourseID: "not-a-uuid", CourseName: "Broken"},
			},
		})
	})

	userID, courseID, unitID := uuid.New(), uuid.New(), uuid.New()
	matches, err := c.FindSimilarCourses(context.Background(), userID, courseID, unitID)
	if err != nil {
		t.Fatalf("FindSimilarCourses: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: want=1 got=%d", len(matches))
	}
	match := matches[0]
	if match.CourseID != wantCourseID {
		t.Fatalf("course id: want=%s got=%s", wantCourseID, match.CourseID)
	}
	if match.CourseName != "Linear Algebra" || match.UnitName != "Eigenvalues" {
		t.Fatalf("names: got=%q/%q", match.CourseName, match.UnitName)
	}
	// The malformed question id is dropped, the good one survives.
	if len(match.QuestionIDs) != 1 || match.QuestionIDs[0] != wantQuestionID {
		t.Fatalf("question ids: want=[%s] got=%v", wantQuestionID, match.QuestionIDs)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization: got=%q", gotAuth)
	}
	if gotBody.UserID != userID.String() || gotBody.CourseID != courseID.String() || gotBody.UnitID != unitID.String() {
		t.Fatalf("request body: got=%+v", gotBody)
	}
}

func TestFindSimilarCoursesOmitsNilUnit(t *testing.T) {
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(similarCoursesResponse{
			SimilarCourses: []similarCourseEntry{{CourseID: uuid.New().String()}},
		})
	})

	if _, err := c.FindSimilarCourses(context.Background(), uuid.New(), uuid.New(), uuid.Nil); err != nil {
		t.Fatalf("FindSimilarCourses: %v", err)
	}
	if _, present := gotBody["unit_id"]; present {
		t.Fatalf("unit_id sent for nil unit: %v", gotBody)
	}
}

func TestFindSimilarCoursesEmptyResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(similarCoursesResponse{})
	})

	_, err := c.FindSimilarCourses(context.Background(), uuid.New(), uuid.New(), uuid.Nil)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("want ErrNoResults got %v", err)
	}
}

func TestFindSimilarCoursesAllEntriesMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(similarCoursesResponse{
			SimilarCourses: []similarCourseEntry{{CourseID: "junk"}},
		})
	})

	_, err := c.FindSimilarCourses(context.Background(), uuid.New(), uuid.New(), uuid.Nil)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("want ErrNoResults got %v", err)
	}
}

func TestFindSimilarCoursesHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	})

	_, err := c.FindSimilarCourses(context.Background(), uuid.New(), uuid.New(), uuid.Nil)
	var httpErr *httpError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("want http 502 error got %v", err)
	}
}

func TestClassifyTags(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify" {
			t.Errorf("path: got=%s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(classifyResponse{Tags: []string{"math", "algebra"}})
	})

	tags, err := c.ClassifyTags(context.Background(), "linear equations")
	if err != nil {
		t.Fatalf("ClassifyTags: %v", err)
	}
	if len(tags) != 2 || tags[0] != "math" || tags[1] != "algebra" {
		t.Fatalf("tags: got=%v", tags)
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	t.Setenv("SIMILARITY_API_BASE_URL", "")
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	if _, err := NewClient(log); err == nil {
		t.Fatalf("expected error for missing base url")
	}
}
