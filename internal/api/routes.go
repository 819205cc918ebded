package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/developer-meett/Know-map/internal/grading"
	"github.com/developer-meett/Know-map/internal/progress"
	"github.com/developer-meett/Know-map/internal/report"
	"github.com/developer-meett/Know-map/internal/submission"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type submitRequest struct {
	QuizID       string            `json:"quizId"`
	Answers      grading.AnswerSet `json:"answers"`
	TimeSpent    float64           `json:"timeSpent"`
	DeviceType   string            `json:"deviceType"`
	RetryAttempt int               `json:"retryAttempt"`
}

type submitResponse struct {
	Success        bool                  `json:"success"`
	ReportID       string                `json:"reportId,omitempty"`
	QuizTitle      string                `json:"quizTitle"`
	Analysis       grading.Analysis      `json:"analysis"`
	Contribution   progress.Contribution `json:"contribution"`
	Stats          progress.Stats        `json:"stats"`
	BadgesUnlocked []string              `json:"badgesUnlocked"`
	Message        string                `json:"message"`
}

func (h *Handler) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	r, ok := h.authenticate(w, r, false)
	if !ok {
		return
	}
	caller := identityFrom(r.Context())

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.QuizID == "" {
		respondError(w, http.StatusBadRequest, "quizId is required")
		return
	}
	if req.Answers == nil {
		respondError(w, http.StatusBadRequest, "answers are required")
		return
	}

	out, err := h.grader.GradeSubmission(r.Context(), submission.Submission{
		QuizID:  req.QuizID,
		UserID:  caller.UserID,
		Answers: req.Answers,
		Metadata: submission.Metadata{
			TimeSpentSeconds: req.TimeSpent,
			DeviceType:       req.DeviceType,
			RetryAttempt:     req.RetryAttempt,
		},
	})
	if err != nil {
		h.handleError(w, err, "user_id", caller.UserID, "quiz_id", req.QuizID)
		return
	}

	respondJSON(w, http.StatusOK, submitResponse{
		Success:        true,
		ReportID:       out.ReportID,
		QuizTitle:      out.QuizTitle,
		Analysis:       out.Analysis,
		Contribution:   out.Contribution,
		Stats:          out.Stats,
		BadgesUnlocked: out.BadgesUnlocked,
		Message:        "Quiz submitted and analyzed successfully",
	})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	r, ok := h.authenticate(w, r, false)
	if !ok {
		return
	}
	caller := identityFrom(r.Context())

	stats, err := h.grader.Stats(r.Context(), caller.UserID)
	if err != nil {
		h.handleError(w, err, "user_id", caller.UserID)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleListReports(w http.ResponseWriter, r *http.Request) {
	r, ok := h.authenticate(w, r, false)
	if !ok {
		return
	}
	caller := identityFrom(r.Context())

	limit := h.recentReports
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, 50)
	}

	reports, err := h.reports.ListByUser(r.Context(), caller.UserID, limit)
	if err != nil {
		h.handleError(w, err, "user_id", caller.UserID)
		return
	}
	if reports == nil {
		reports = []report.Report{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// ownReport loads the report named in the path, hiding other learners'
// reports behind a 404.
func (h *Handler) ownReport(w http.ResponseWriter, r *http.Request) (report.Report, bool) {
	r, ok := h.authenticate(w, r, false)
	if !ok {
		return report.Report{}, false
	}
	caller := identityFrom(r.Context())

	rep, err := h.reports.Get(r.Context(), r.PathValue("reportID"))
	if err == nil && rep.UserID != caller.UserID && !caller.Admin {
		err = report.ErrNotFound
	}
	if err != nil {
		h.handleError(w, err, "user_id", caller.UserID, "report_id", r.PathValue("reportID"))
		return report.Report{}, false
	}
	return rep, true
}

func (h *Handler) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.ownReport(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

func (h *Handler) handleExportReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.ownReport(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := report.ExportXLSX(&buf, rep); err != nil {
		h.handleError(w, err, "report_id", rep.ID)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "report-"+rep.ID+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleImportQuiz(w http.ResponseWriter, r *http.Request) {
	r, ok := h.authenticate(w, r, false)
	if !ok {
		return
	}
	caller := identityFrom(r.Context())
	if !caller.Admin {
		respondError(w, http.StatusForbidden, "Forbidden: admin token required")
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	q, err := h.validator.Parse(data, r.URL.Query().Get("id"))
	if err != nil {
		h.handleError(w, err)
		return
	}
	if err := h.quizzes.SaveQuiz(r.Context(), q); err != nil {
		h.handleError(w, err, "quiz_id", q.ID)
		return
	}

	h.logger.Info("quiz imported", "quiz_id", q.ID, "questions", len(q.Questions), "by", caller.UserID)
	respondJSON(w, http.StatusCreated, map[string]any{"id": q.ID, "questions": len(q.Questions)})
}
