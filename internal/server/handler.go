package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"callscreen/internal/admission"
	callscreenErrors "callscreen/internal/errors"
	"callscreen/internal/observability"
	"callscreen/internal/store"
	"callscreen/internal/types"

	"go.opentelemetry.io/otel/attribute"
)

// ==================== Jobs ====================

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) createJobHandler(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErrorResponse(w, "Validation failed", err.Error(), http.StatusBadRequest)
		return
	}

	education, err := types.ParseEducationLevel(req.Spec.Education)
	if err != nil {
		writeErrorResponse(w, "Validation failed", err.Error(), http.StatusBadRequest)
		return
	}
	skills := make([]string, 0, len(req.Spec.Skills))
	for _, skill := range req.Spec.Skills {
		skills = append(skills, strings.TrimSpace(skill))
	}

	job := &types.Job{
		ID:              req.ID,
		Title:           req.Title,
		Location:        req.Location,
		JobType:         req.JobType,
		ExperienceLevel: req.ExperienceLevel,
		Salary:          req.Salary,
		Description:     req.Description,
		Requirements:    req.Requirements,
		Spec: types.JobSpecification{
			Education:  education,
			Experience: req.Spec.Experience,
			Skills:     skills,
		},
		Deadline: req.Deadline,
	}
	if err := s.store.SaveJob(r.Context(), job); err != nil {
		s.writeAppError(w, err)
		return
	}
	s.Logger.Info("Job saved", "job_id", job.ID, "title", job.Title)
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) deleteJobHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteJob(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==================== Applications ====================

// applyHandler accepts a multipart application with a PDF résumé, stores
// it and starts screening in the background.
func (s *Server) applyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.obs.Tracer("callscreen.api").Start(r.Context(), "api.apply")
	defer span.End()

	job, err := s.store.GetJob(ctx, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	if job.Deadline != nil && s.now().After(*job.Deadline) {
		s.writeAppError(w, callscreenErrors.NewValidationError(callscreenErrors.ErrCodeConflict,
			"applications for this job are closed", nil))
		return
	}

	if err := r.ParseMultipartForm(s.multipartMemory()); err != nil {
		span.RecordError(err)
		writeErrorResponse(w, "Invalid multipart form", err.Error(), http.StatusBadRequest)
		return
	}
	form := ApplyForm{
		FirstName: strings.TrimSpace(r.FormValue("firstName")),
		LastName:  strings.TrimSpace(r.FormValue("lastName")),
		Email:     strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Phone:     strings.TrimSpace(r.FormValue("phone")),
	}
	if err := s.validate.Struct(form); err != nil {
		writeErrorResponse(w, "Validation failed", err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := s.readResume(r)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	applicant := &types.Applicant{FirstName: form.FirstName, LastName: form.LastName, Email: form.Email, Phone: form.Phone}
	if err := s.store.UpsertApplicant(ctx, applicant); err != nil {
		s.writeAppError(w, err)
		return
	}
	app := &types.Application{ApplicantID: applicant.ID, JobID: job.ID, ResumeName: doc.Name, Resume: doc.Data}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		s.writeAppError(w, err)
		return
	}

	s.obs.GetMetrics().RecordBusinessMetric(ctx, observability.MetricApplicationFiled, true, s.obs,
		attribute.String("job_id", job.ID))
	span.SetAttributes(attribute.String("application.id", app.ID), attribute.Int("resume.size", len(doc.Data)))
	s.Logger.Info("Application received", "application_id", app.ID, "job_id", job.ID)

	s.gate.ScreenAsync(ctx, admission.Candidate{Application: app, Applicant: *applicant, Job: *job})
	writeJSON(w, http.StatusAccepted, app)
}

func (s *Server) multipartMemory() int64 {
	if s.MaxRequestSize > 0 {
		return s.MaxRequestSize
	}
	return 32 << 20
}

func (s *Server) readResume(r *http.Request) (types.Document, error) {
	file, header, err := r.FormFile("resume")
	if err != nil {
		return types.Document{}, callscreenErrors.NewValidationError(callscreenErrors.ErrCodeMissingField,
			"resume file is required", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return types.Document{}, callscreenErrors.NewIOError(callscreenErrors.ErrCodeFileNotReadable,
			"failed to read resume", err)
	}
	doc := types.Document{Name: header.Filename, MIMEType: header.Header.Get("Content-Type"), Data: data}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return types.Document{}, callscreenErrors.NewValidationError(callscreenErrors.ErrCodeUnsupportedDoc,
			"resume must be a PDF file", nil).WithContext("filename", header.Filename)
	}
	return doc, nil
}

func (s *Server) listApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ApplicationFilter{JobID: q.Get("jobId"), Status: types.ApplicationStatus(q.Get("status"))}
	apps, err := s.store.ListApplications(r.Context(), filter)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (s *Server) getApplicationHandler(w http.ResponseWriter, r *http.Request) {
	app, err := s.store.GetApplication(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) deleteApplicationHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteApplication(r.Context(), r.PathValue("id")); err != nil {
		s.writeAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// screenApplicationHandler re-runs scoring and admission synchronously.
func (s *Server) screenApplicationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	app, err := s.store.GetApplication(ctx, r.PathValue("id"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	applicant, err := s.store.GetApplicant(ctx, app.ApplicantID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	job, err := s.store.GetJob(ctx, app.JobID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	decision, err := s.gate.Screen(ctx, admission.Candidate{Application: app, Applicant: *applicant, Job: *job})
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// ==================== Calls ====================

type callView struct {
	CallID        string    `json:"callId"`
	StartedAt     time.Time `json:"startedAt"`
	State         string    `json:"state"`
	Turns         int       `json:"turns"`
	ApplicationID string    `json:"applicationId,omitempty"`
	Candidate     string    `json:"candidate,omitempty"`
	Job           string    `json:"job,omitempty"`
}

func (s *Server) listCallsHandler(w http.ResponseWriter, r *http.Request) {
	snapshots := s.dialog.Registry().Snapshots()
	calls := make([]callView, 0, len(snapshots))
	for _, snap := range snapshots {
		calls = append(calls, callView{
			CallID:        snap.CallID,
			StartedAt:     snap.StartedAt,
			State:         snap.State.String(),
			Turns:         len(snap.Turns),
			ApplicationID: snap.Context.ApplicationID,
			Candidate:     snap.Context.CandidateName,
			Job:           snap.Context.JobTitle,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": calls})
}

// placeCallHandler dials a number directly, bypassing scoring.
func (s *Server) placeCallHandler(w http.ResponseWriter, r *http.Request) {
	if s.placer == nil {
		writeErrorResponse(w, "Telephony disabled", "set telephony.enabled to place calls", http.StatusServiceUnavailable)
		return
	}
	var req CallRequest
	if err := parseJSONRequest(r, &req); err != nil {
		writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeErrorResponse(w, "Validation failed", err.Error(), http.StatusBadRequest)
		return
	}

	callID, err := s.placer.PlaceCall(r.Context(), req.To)
	s.obs.GetMetrics().RecordBusinessMetric(r.Context(), observability.MetricCallPlaced, err == nil, s.obs,
		attribute.Bool("manual", true))
	if err != nil {
		s.Logger.LogError(err, "Manual call placement failed", "to", req.To)
		writeErrorResponse(w, "Call placement failed", err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"callId": callID, "message": fmt.Sprintf("Calling %s", req.To)})
}
