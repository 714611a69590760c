package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/studybits/studybits-backend/internal/platform/logger"
)

// ErrNoResults is returned when the similarity service answers with an
// empty result set. Callers treat it as "nothing to study here", not a
// failure.
var ErrNoResults = errors.New("similarity: no results")

// CourseMatch is one entry of a similarity answer: the matched course,
// the names the service matched on, and the question ids backing the
// match.
type CourseMatch struct {
	CourseID    uuid.UUID
	CourseName  string
	UnitName    string
	QuestionIDs []uuid.UUID
}

// Client talks to the external course-similarity service. Every call is
// a single attempt; the rotation selector owns retry-by-moving-on.
type Client interface {
	// FindSimilarCourses returns courses similar to the given course
	// (optionally narrowed to one unit), personalized per user. A nil
	// unitID means the whole course.
	FindSimilarCourses(ctx context.Context, userID, courseID uuid.UUID, unitID uuid.UUID) ([]CourseMatch, error)

	// ClassifyTags asks the service to tag free text (course or unit
	// descriptions, question text).
	ClassifyTags(ctx context.Context, text string) ([]string, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	baseURL := strings.TrimSpace(os.Getenv("SIMILARITY_API_BASE_URL"))
	if baseURL == "" {
		return nil, fmt.Errorf("missing SIMILARITY_API_BASE_URL")
	}
	baseURL = strings.TrimRight(baseURL, "/")

	apiKey := strings.TrimSpace(os.Getenv("SIMILARITY_API_KEY"))

	timeoutSec := 15
	if v := os.Getenv("SIMILARITY_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	return &client{
		log:        log.With("service", "SimilarityClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
	}, nil
}

type similarCoursesRequest struct {
	UserID   string `json:"uid"`
	CourseID string `json:"course_id"`
	UnitID   string `json:"unit_id,omitempty"`
}

type similarCourseEntry struct {
	CourseID   string   `json:"course_id"`
	CourseName string   `json:"course_name"`
	UnitName   string   `json:"unit_name"`
	Questions  []string `json:"questions"`
}

type similarCoursesResponse struct {
	SimilarCourses []similarCourseEntry `json:"similar_courses"`
}

func (c *client) FindSimilarCourses(ctx context.Context, userID, courseID uuid.UUID, unitID uuid.UUID) ([]CourseMatch, error) {
	req := similarCoursesRequest{
		UserID:   userID.String(),
		CourseID: courseID.String(),
	}
	if unitID != uuid.Nil {
		req.UnitID = unitID.String()
	}

	var resp similarCoursesResponse
	if err := c.post(ctx, "/v1/similar-courses", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.SimilarCourses) == 0 {
		return nil, ErrNoResults
	}

	out := make([]CourseMatch, 0, len(resp.SimilarCourses))
	for _, entry := range resp.SimilarCourses {
		id, err := uuid.Parse(entry.CourseID)
		if err != nil {
			c.log.Warn("Skipping malformed course id from similarity service", "raw", entry.CourseID)
			continue
		}
		match := CourseMatch{
			CourseID:    id,
			CourseName:  entry.CourseName,
			UnitName:    entry.UnitName,
			QuestionIDs: make([]uuid.UUID, 0, len(entry.Questions)),
		}
		for _, raw := range entry.Questions {
			qid, err := uuid.Parse(raw)
			if err != nil {
				c.log.Warn("Skipping malformed question id from similarity service", "raw", raw)
				continue
			}
			match.QuestionIDs = append(match.QuestionIDs, qid)
		}
		out = append(out, match)
	}
	if len(out) == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Tags []string `json:"tags"`
}

func (c *client) ClassifyTags(ctx context.Context, text string) ([]string, error) {
	var resp classifyResponse
	if err := c.post(ctx, "/v1/classify", classifyRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("similarity http %d: %s", e.StatusCode, e.Body)
}

func (c *client) post(ctx context.Context, path string, body any, out any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &httpError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return json.Unmarshal(raw, out)
}
